package db

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"uitforum/internal/docstore"
)

// Open 连接数据库（启动时数据库可能还没就绪，按指数退避重试），并迁移 documents 表
func Open(ctx context.Context, dsn string, logger logrus.FieldLogger) (*gorm.DB, error) {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = time.Minute

	var conn *gorm.DB
	err := backoff.RetryNotify(func() error {
		var err error
		conn, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			return err
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return backoff.Permanent(err)
		}
		return sqlDB.PingContext(ctx)
	}, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		logger.WithError(err).WithField("retryIn", wait).Warn("database not ready")
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	logger.Info("Database connection established")

	if err := Migrate(conn); err != nil {
		return nil, err
	}
	logger.Info("Database migration completed")
	return conn, nil
}

// Migrate 自动迁移文档表
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(&docstore.Document{}); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}
