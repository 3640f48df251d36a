package logging

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Setup 配置全局 logrus 实例
// 未知级别回退为 info，format 支持 text / json
func Setup(level, format string) {
	parsed, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
	log.SetOutput(os.Stdout)

	if strings.EqualFold(strings.TrimSpace(format), "json") {
		log.SetFormatter(&log.JSONFormatter{})
		return
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}
