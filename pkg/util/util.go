package util

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateShortUUID 生成一个不带中划线的短 UUID
func GenerateShortUUID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// GenerateNotificationID 纳秒时间戳 + 8 位随机串，同一纳秒内也不会冲突
func GenerateNotificationID(now time.Time) string {
	return strconv.FormatInt(now.UnixNano(), 10) + "-" + GenerateShortUUID()[:8]
}
