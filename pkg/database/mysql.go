// Package database 负责初始化 MySQL 与 Redis 连接。
package database

import (
	"context"
	"time"

	"agent-chat-go/internal/model"
	"agent-chat-go/pkg/log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitMySQL 初始化 MySQL 数据库连接
func InitMySQL(dsn string) {
	var err error
	DB, err = OpenMySQL(dsn)
	if err != nil {
		log.Fatal("failed to connect database", err)
	}
	log.Info("MySQL database connected successfully")
}

// OpenMySQL 打开一个配置好连接池的 GORM 连接，不修改全局变量。
func OpenMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		// 时间统一以 UTC 存储，精度由列类型 datetime(6) 决定
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)           // 设置空闲连接池中连接的最大数量
	sqlDB.SetMaxOpenConns(100)          // 设置打开数据库连接的最大数量
	sqlDB.SetConnMaxLifetime(time.Hour) // 设置了连接可复用的最大时间
	return db, nil
}

// AutoMigrate 创建或更新 users、conversations、messages 三张表。
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&model.User{}, &model.Conversation{}, &model.Message{}); err != nil {
		return err
	}
	log.Info("applied chat schema migrations")
	return nil
}

// ClearAll 按外键依赖顺序删除所有消息、会话和用户，返回各表删除的行数。
func ClearAll(ctx context.Context, db *gorm.DB) (map[string]int64, error) {
	deleted := make(map[string]int64, 3)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{ TableName() string }{&model.Message{}, &model.Conversation{}, &model.User{}} {
			res := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m)
			if res.Error != nil {
				return res.Error
			}
			deleted[m.TableName()] = res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}
