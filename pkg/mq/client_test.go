package mq_test

import (
	"context"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sensorhub-io/sensorhub/pkg/mq"
)

var _ = Describe("MQ Client", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	})

	Describe("New", func() {
		It("should create a new client instance", func() {
			client := mq.New("readings", "amqp://localhost:5672", logger)
			Expect(client).NotTo(BeNil())
		})

		It("should start the background reconnection goroutine", func() {
			client := mq.New("readings", "amqp://invalid:5672", logger)
			Expect(client).NotTo(BeNil())

			time.Sleep(100 * time.Millisecond)
			_ = client.Close()
		})
	})

	Describe("Push", func() {
		Context("when not connected", func() {
			It("should stop retrying when the context expires", func() {
				client := mq.New("readings", "amqp://invalid:5672", logger)
				time.Sleep(100 * time.Millisecond)

				ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
				defer cancel()

				start := time.Now()
				err := client.Push(ctx, []byte("reading"))
				elapsed := time.Since(start)

				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(SatisfyAny(
					ContainSubstring("context deadline exceeded"),
					ContainSubstring("context canceled"),
				))
				Expect(elapsed).To(BeNumerically(">=", 100*time.Millisecond))

				_ = client.Close()
			})

			It("should give up after the retry budget", func() {
				client := mq.New("readings", "amqp://invalid:5672", logger)
				time.Sleep(100 * time.Millisecond)

				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				start := time.Now()
				err := client.Push(ctx, []byte("reading"))
				elapsed := time.Since(start)

				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("maximum retry attempts exceeded"))

				// Five backoff waits: 100ms + 200ms + 400ms + 800ms + 1600ms.
				Expect(elapsed).To(BeNumerically(">=", 3*time.Second))
				Expect(elapsed).To(BeNumerically("<", 10*time.Second))

				_ = client.Close()
			})

			It("should return a direct error from UnsafePush", func() {
				client := mq.New("readings", "amqp://invalid:5672", logger)
				time.Sleep(100 * time.Millisecond)

				err := client.UnsafePush(context.Background(), []byte("reading"))
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("not connected"))

				_ = client.Close()
			})
		})
	})

	Describe("Consume", func() {
		Context("when not connected", func() {
			It("should return an error", func() {
				client := mq.New("readings", "amqp://invalid:5672", logger)
				time.Sleep(100 * time.Millisecond)

				_, err := client.Consume()
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("not connected"))

				_ = client.Close()
			})
		})
	})

	Describe("Close", func() {
		Context("when never connected", func() {
			It("should report already closed", func() {
				client := mq.New("readings", "amqp://invalid:5672", logger)
				time.Sleep(100 * time.Millisecond)

				err := client.Close()
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("already closed"))
			})
		})
	})

	Describe("concurrent access", func() {
		It("should handle concurrent UnsafePush attempts safely", func() {
			client := mq.New("readings", "amqp://invalid:5672", logger)
			defer func() { _ = client.Close() }()

			time.Sleep(100 * time.Millisecond)

			done := make(chan bool, 3)
			for i := 0; i < 3; i++ {
				go func() {
					_ = client.UnsafePush(context.Background(), []byte("reading"))
					done <- true
				}()
			}

			for i := 0; i < 3; i++ {
				Eventually(done).Should(Receive())
			}
		})
	})
})
