package model

// UserRole 来自平台账号服务签发的令牌，本服务不保存用户表
type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)
