package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sensorhub-io/sensorhub/pkg/logger"
)

var _ = Describe("Logger", func() {
	Describe("New", func() {
		Context("with default config", func() {
			It("should create a non-nil logger", func() {
				log := logger.New(logger.DefaultConfig())
				Expect(log).NotTo(BeNil())
			})
		})

		Context("with nil config", func() {
			It("should create a non-nil logger with defaults", func() {
				log := logger.New(nil)
				Expect(log).NotTo(BeNil())
			})
		})

		Context("with JSON format", func() {
			It("should emit one JSON object per record", func() {
				var buf bytes.Buffer
				log := logger.New(&logger.Config{
					Output: &buf,
					Format: logger.FormatJSON,
					Level:  slog.LevelInfo,
				})

				log.Info("hello", "key", "value")

				var record map[string]any
				Expect(json.Unmarshal(buf.Bytes(), &record)).To(Succeed())
				Expect(record["msg"]).To(Equal("hello"))
				Expect(record["key"]).To(Equal("value"))
			})
		})

		Context("with text format", func() {
			It("should emit logfmt-style records", func() {
				var buf bytes.Buffer
				log := logger.New(&logger.Config{
					Output: &buf,
					Format: logger.FormatText,
					Level:  slog.LevelInfo,
				})

				log.Info("hello", "key", "value")
				Expect(buf.String()).To(ContainSubstring("msg=hello"))
				Expect(buf.String()).To(ContainSubstring("key=value"))
			})
		})

		Context("with a minimum level", func() {
			It("should drop records below the level", func() {
				var buf bytes.Buffer
				log := logger.New(&logger.Config{
					Output: &buf,
					Level:  slog.LevelWarn,
				})

				log.Info("quiet")
				Expect(buf.Len()).To(BeZero())

				log.Warn("loud")
				Expect(buf.String()).To(ContainSubstring("loud"))
			})
		})
	})

	Describe("NewDefault", func() {
		It("should create a non-nil logger with default settings", func() {
			log := logger.NewDefault()
			Expect(log).NotTo(BeNil())
		})
	})

	Describe("ParseLevel", func() {
		DescribeTable("should parse level strings correctly",
			func(input string, expected slog.Level) {
				Expect(logger.ParseLevel(input)).To(Equal(expected))
			},
			Entry("debug", "debug", slog.LevelDebug),
			Entry("info", "info", slog.LevelInfo),
			Entry("warn", "warn", slog.LevelWarn),
			Entry("warning alias", "warning", slog.LevelWarn),
			Entry("error", "error", slog.LevelError),
			Entry("unknown falls back to info", "verbose", slog.LevelInfo),
			Entry("empty falls back to info", "", slog.LevelInfo),
		)
	})

	Describe("ForComponent", func() {
		It("tags every record with the component name", func() {
			var buf bytes.Buffer
			base := logger.New(&logger.Config{Output: &buf})

			logger.ForComponent(base, "engine").Info("ready")

			var record map[string]any
			Expect(json.Unmarshal(buf.Bytes(), &record)).To(Succeed())
			Expect(record["component"]).To(Equal("engine"))
		})
	})
})
