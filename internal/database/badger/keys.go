package badger

import "fmt"

// Key namespaces. Values are JSON unless noted.
//
//	n:<owner>:<id>               node
//	c:<owner>:<parent>:<name>    child id (raw); parent is empty at the root
//	sp:<storagePath>             storagePathEntry
//	perm:<name>                  permission
//	permid:<id>                  permission name (raw)
//	role:<id>                    role with permission names
//	rolename:<name>              role id (raw)
//	user:<id>                    user
//	email:<email>                user id (raw)
//	op:<%020d id>                operation
const (
	prefixNode        = "n:"
	prefixChild       = "c:"
	prefixStoragePath = "sp:"
	prefixPermission  = "perm:"
	prefixPermID      = "permid:"
	prefixRole        = "role:"
	prefixRoleName    = "rolename:"
	prefixUser        = "user:"
	prefixEmail       = "email:"
	prefixOperation   = "op:"

	keyOperationSeq = "seq:op"
)

func keyNode(ownerID, id string) []byte {
	return []byte(prefixNode + ownerID + ":" + id)
}

func keyChildPrefix(ownerID, parentID string) []byte {
	return []byte(prefixChild + ownerID + ":" + parentID + ":")
}

func keyChild(ownerID, parentID, name string) []byte {
	return append(keyChildPrefix(ownerID, parentID), name...)
}

func keyStoragePath(storagePath string) []byte {
	return []byte(prefixStoragePath + storagePath)
}

func keyPermission(name string) []byte { return []byte(prefixPermission + name) }
func keyPermID(id string) []byte       { return []byte(prefixPermID + id) }
func keyRole(id string) []byte         { return []byte(prefixRole + id) }
func keyRoleName(name string) []byte   { return []byte(prefixRoleName + name) }
func keyUser(id string) []byte         { return []byte(prefixUser + id) }
func keyEmail(email string) []byte     { return []byte(prefixEmail + email) }

// keyOperation zero-pads the id so keys sort numerically.
func keyOperation(id int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOperation, id))
}
