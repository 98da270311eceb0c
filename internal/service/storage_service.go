package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"corptrain_backend/internal/config"
	"corptrain_backend/internal/util"
	"corptrain_backend/pkg/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// StorageProvider 把题目上的媒体引用（对象名）转换为客户端可访问的地址。
// 上传不在本服务范围内。
type StorageProvider interface {
	GetURL(ctx context.Context, objectName string) (string, error)
}

// LocalStorageProvider 媒体由静态服务器或 CDN 提供，直接拼接公开地址
type LocalStorageProvider struct {
	Config *config.StorageConfig
}

func (p *LocalStorageProvider) GetURL(ctx context.Context, objectName string) (string, error) {
	base := strings.TrimRight(p.Config.PublicBaseURL, "/")
	return base + "/" + strings.TrimLeft(objectName, "/"), nil
}

// MinioStorageProvider 为私有桶中的对象生成限时签名地址
type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioStorageProvider(cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStorageProvider{Config: cfg, Client: client}, nil
}

func (p *MinioStorageProvider) GetURL(ctx context.Context, objectName string) (string, error) {
	expiry := time.Duration(p.Config.PresignMinute) * time.Minute
	if expiry <= 0 {
		expiry = 30 * time.Minute
	}
	u, err := p.Client.PresignedGetObject(ctx, p.Config.MinioBucket, objectName, expiry, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// StorageService 存储服务
type StorageService struct {
	Provider StorageProvider
}

func NewStorageService(cfg *config.Config) *StorageService {
	var provider StorageProvider
	if cfg.Storage.Type == util.StorageMinio {
		p, err := NewMinioStorageProvider(&cfg.Storage)
		if err != nil {
			logger.Log.Error("Failed to create minio client, falling back to local media urls", zap.Error(err))
		} else {
			provider = p
		}
	}

	if provider == nil {
		provider = &LocalStorageProvider{Config: &cfg.Storage}
	}

	return &StorageService{Provider: provider}
}

// MediaURL 空引用返回空串；已是完整地址的引用原样返回
func (s *StorageService) MediaURL(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}
	return s.Provider.GetURL(ctx, ref)
}
