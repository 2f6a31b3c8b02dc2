package initial

import (
	"fmt"
	"log"
	"os"
	"time"

	"OrderPulse/internal/config"
	orderEntity "OrderPulse/internal/modules/order/domain/entity"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var GormDB *gorm.DB

// InitGorm 连接 MySQL 并自动迁移订单表
func InitGorm() (*gorm.DB, error) {
	conf := config.GetConfig()
	dbName := conf.MysqlConfig.DatabaseName
	if dbName == "" {
		dbName = conf.AppName
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		conf.MysqlConfig.User, conf.MysqlConfig.Password, conf.MysqlConfig.Host, conf.MysqlConfig.Port, dbName)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}
	// 自动迁移，如果没有建表，会自动创建对应的表
	if err := db.AutoMigrate(&orderEntity.Order{}); err != nil {
		return nil, err
	}
	GormDB = db
	return db, nil
}
