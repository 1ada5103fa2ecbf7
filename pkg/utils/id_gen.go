package utils

import (
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// GenViewerID 为观众生成全局唯一的标识（UUIDv4）
func GenViewerID() string {
	return uuid.NewString()
}

// GenConnID 为连接生成按时间排序的标识，便于日志检索
func GenConnID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
