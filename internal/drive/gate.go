package drive

import (
	"context"
	"io"
)

// Gate checks the caller's capabilities before delegating to the Service.
// Every operation runs in the caller's own tree; cross-owner access is not
// expressible through the gate.
type Gate struct {
	service  *Service
	resolver *Resolver
	logger   Logger
}

// NewGate wraps service with capability checks resolved through resolver.
func NewGate(service *Service, resolver *Resolver, logger Logger) *Gate {
	return &Gate{service: service, resolver: resolver, logger: logger}
}

// authorize denies unless the caller's role grants one of required. With no
// required capabilities any authenticated caller passes.
func (g *Gate) authorize(ctx context.Context, op string, caller *Caller, required ...Capability) error {
	if caller == nil || caller.UserID == "" {
		return AuthorizationError(op, "authentication required")
	}
	if len(required) == 0 {
		return nil
	}
	ok, err := g.resolver.HasCapability(ctx, caller.RoleID, required...)
	if err != nil {
		if IsKind(err, KindNotFound) {
			g.logger.Warn("denied: role not found", "op", op, "user", caller.UserID, "role", caller.RoleID)
			return &Error{Kind: KindAuthorization, Op: op, Message: "role not found", Err: err}
		}
		return err
	}
	if !ok {
		g.logger.Warn("denied: missing capability", "op", op, "user", caller.UserID, "required", required)
		return AuthorizationError(op, "insufficient permissions")
	}
	return nil
}

// List requires file:read or file:fullaccess.
func (g *Gate) List(ctx context.Context, caller *Caller, parentID string) (*Listing, error) {
	if err := g.authorize(ctx, "list", caller, CapFileRead, CapFileFullAccess); err != nil {
		return nil, err
	}
	return g.service.List(ctx, caller.UserID, parentID)
}

// UploadFile requires file:upload or file:fullaccess.
func (g *Gate) UploadFile(ctx context.Context, caller *Caller, req UploadRequest) (*Node, error) {
	if err := g.authorize(ctx, "upload", caller, CapFileUpload, CapFileFullAccess); err != nil {
		return nil, err
	}
	return g.service.UploadFile(ctx, caller.UserID, req)
}

// CreateFolder is open to any authenticated caller.
func (g *Gate) CreateFolder(ctx context.Context, caller *Caller, parentID, name string) (*Node, error) {
	if err := g.authorize(ctx, "create folder", caller); err != nil {
		return nil, err
	}
	return g.service.CreateFolder(ctx, caller.UserID, parentID, name)
}

// Rename requires file:rename or file:fullaccess.
func (g *Gate) Rename(ctx context.Context, caller *Caller, nodeID, newName string) (*Node, error) {
	if err := g.authorize(ctx, "rename", caller, CapFileRename, CapFileFullAccess); err != nil {
		return nil, err
	}
	return g.service.Rename(ctx, caller.UserID, nodeID, newName)
}

// Move passes with file:fullaccess alone; bootstrap grants file:move to no role.
func (g *Gate) Move(ctx context.Context, caller *Caller, nodeID, newParentID string) (*Node, error) {
	if err := g.authorize(ctx, "move", caller, CapFileMove, CapFileFullAccess); err != nil {
		return nil, err
	}
	return g.service.Move(ctx, caller.UserID, nodeID, newParentID)
}

// DeleteFile requires file:delete or file:fullaccess.
func (g *Gate) DeleteFile(ctx context.Context, caller *Caller, nodeID string) error {
	if err := g.authorize(ctx, "delete file", caller, CapFileDelete, CapFileFullAccess); err != nil {
		return err
	}
	return g.service.DeleteFile(ctx, caller.UserID, nodeID)
}

// DeleteFolder is open to any authenticated caller.
func (g *Gate) DeleteFolder(ctx context.Context, caller *Caller, nodeID string) (int, error) {
	if err := g.authorize(ctx, "delete folder", caller); err != nil {
		return 0, err
	}
	return g.service.DeleteFolder(ctx, caller.UserID, nodeID)
}

// Download requires file:download or file:fullaccess.
func (g *Gate) Download(ctx context.Context, caller *Caller, storagePath string, w io.Writer) (*Node, error) {
	if err := g.authorize(ctx, "download", caller, CapFileDownload, CapFileFullAccess); err != nil {
		return nil, err
	}
	return g.service.Download(ctx, caller.UserID, storagePath, w)
}

// Stat needs the same capabilities as List.
func (g *Gate) Stat(ctx context.Context, caller *Caller, nodeID string) (*Node, error) {
	if err := g.authorize(ctx, "stat", caller, CapFileRead, CapFileFullAccess); err != nil {
		return nil, err
	}
	return g.service.Stat(ctx, caller.UserID, nodeID)
}
