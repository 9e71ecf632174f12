package drive

// Capability is a permission name checked by the gate.
type Capability string

const (
	CapFileRead       Capability = "file:read"
	CapFileUpload     Capability = "file:upload"
	CapFileDelete     Capability = "file:delete"
	CapFileDownload   Capability = "file:download"
	CapFileRename     Capability = "file:rename"
	CapFileMove       Capability = "file:move"
	CapFileFullAccess Capability = "file:fullaccess"
	CapMaster         Capability = "master:permission"
)

const (
	// MasterAdminRole is granted every capability regardless of its permissions.
	MasterAdminRole = "master-admin"
	// DefaultUserRole is assigned to newly registered users.
	DefaultUserRole = "user"
)

// Vocabulary lists every known capability with a description, in the order
// bootstrap provisions them.
var Vocabulary = []struct {
	Capability  Capability
	Description string
}{
	{CapMaster, "Universal administrative access"},
	{CapFileRead, "List folders and read metadata"},
	{CapFileUpload, "Upload files"},
	{CapFileDelete, "Delete files"},
	{CapFileDownload, "Download file contents"},
	{CapFileRename, "Rename files and folders"},
	{CapFileMove, "Move files and folders"},
	{CapFileFullAccess, "Full access to own files and folders"},
}

// defaultUserCapabilities is the grant set of the default user role.
var defaultUserCapabilities = []Capability{
	CapFileRead,
	CapFileUpload,
	CapFileDelete,
	CapFileDownload,
	CapFileFullAccess,
}

func (c Capability) String() string { return string(c) }
