package cache_test

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/andesco/mirror/pkg/cache"
	"github.com/go-redis/redis/v8"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Redis", func() {
	var (
		mockRedis *miniredis.Miniredis
		client    *redis.Client
		store     *cache.Redis
		ctx       context.Context
	)

	BeforeEach(func() {
		var err error
		mockRedis, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())

		client = redis.NewClient(&redis.Options{Addr: mockRedis.Addr()})
		store = &cache.Redis{
			Client: client,
			Logger: log.New(os.Stdout, "", log.LstdFlags),
		}
		ctx = context.Background()
	})

	AfterEach(func() {
		client.Close()
		mockRedis.Close()
	})

	It("reports a miss for unknown keys", func() {
		e, ok := store.Get(ctx, "https://example.test/missing.png")
		Expect(ok).To(BeFalse())
		Expect(e).To(BeNil())
	})

	It("round-trips binary payloads byte for byte", func() {
		payload := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff, 0x0d, 0x0a}
		storedAt := time.Unix(1700000000, 123)

		err := store.Put(ctx, "https://example.test/logo.png", &cache.Entry{
			Payload:     payload,
			ContentType: "image/png",
			StoredAt:    storedAt,
		})
		Expect(err).NotTo(HaveOccurred())

		e, ok := store.Get(ctx, "https://example.test/logo.png")
		Expect(ok).To(BeTrue())
		Expect(e.Payload).To(Equal(payload))
		Expect(e.ContentType).To(Equal("image/png"))
		Expect(e.StoredAt.Equal(storedAt)).To(BeTrue())
	})

	It("writes under the default prefix without an expiry", func() {
		err := store.Put(ctx, "https://example.test/", &cache.Entry{Payload: []byte("x"), StoredAt: time.Now()})
		Expect(err).NotTo(HaveOccurred())

		Expect(mockRedis.Exists("mirror:https://example.test/")).To(BeTrue())
		Expect(mockRedis.TTL("mirror:https://example.test/")).To(BeZero())
	})

	It("replaces earlier entries", func() {
		Expect(store.Put(ctx, "k", &cache.Entry{Payload: []byte("old"), ContentType: "text/plain", StoredAt: time.Now()})).To(Succeed())
		Expect(store.Put(ctx, "k", &cache.Entry{Payload: []byte("new"), StoredAt: time.Now()})).To(Succeed())

		e, ok := store.Get(ctx, "k")
		Expect(ok).To(BeTrue())
		Expect(string(e.Payload)).To(Equal("new"))
		Expect(e.ContentType).To(BeEmpty())
	})

	It("treats malformed hashes as misses", func() {
		mockRedis.HSet("mirror:bad", "payload", "x")
		mockRedis.HSet("mirror:bad", "stored-at", "yesterday")

		_, ok := store.Get(ctx, "bad")
		Expect(ok).To(BeFalse())
	})

	It("clears only its own prefix", func() {
		Expect(mockRedis.Set("other:key", "keep")).To(Succeed())
		Expect(store.Put(ctx, "a", &cache.Entry{StoredAt: time.Now()})).To(Succeed())
		Expect(store.Put(ctx, "b", &cache.Entry{StoredAt: time.Now()})).To(Succeed())

		Expect(store.Clear(ctx)).To(Succeed())

		_, ok := store.Get(ctx, "a")
		Expect(ok).To(BeFalse())
		Expect(mockRedis.Exists("mirror:b")).To(BeFalse())
		Expect(mockRedis.Exists("other:key")).To(BeTrue())
	})

	It("reports a miss when redis is unavailable", func() {
		mockRedis.Close()

		_, ok := store.Get(ctx, "k")
		Expect(ok).To(BeFalse())
	})
})
