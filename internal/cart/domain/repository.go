package domain

import "context"

// CartMirrorRepository 持久化镜像，仅在权威提交之后写入
type CartMirrorRepository interface {
	Load(ctx context.Context, sessionID string) (*Cart, error)
	Save(ctx context.Context, sessionID string, cart *Cart) error
	Clear(ctx context.Context, sessionID string) error
}
