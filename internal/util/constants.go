package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// gin.Context 中使用的键
const (
	ContextUserKey   = "user"
	ContextConfigKey = "config"
)
