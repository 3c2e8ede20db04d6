package mock

import (
	"errors"
	"sync"
)

// Recorder collects lifecycle events in order, for asserting setup and
// teardown sequencing across providers.
type Recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *Recorder) Record(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

// Core interfaces resolved through the container in tests.

type Database interface {
	Ping() error
}

type Cache interface {
	Get(key string) string
}

type Mailer interface {
	Send(to, body string) error
}

type DB struct {
	DSN    string
	Closed bool
}

func (d *DB) Ping() error {
	if d.Closed {
		return errors.New("database closed")
	}
	return nil
}

type MemoryCache struct {
	Backing Database
	values  map[string]string
}

func NewMemoryCache(db Database) *MemoryCache {
	return &MemoryCache{Backing: db, values: make(map[string]string)}
}

func (c *MemoryCache) Get(key string) string {
	return c.values[key]
}

type SMTPMailer struct {
	Sent []string
}

func (m *SMTPMailer) Send(to, body string) error {
	m.Sent = append(m.Sent, to+":"+body)
	return nil
}

// Service is a class-kind prototype: its tagged fields are injected.
type Service struct {
	DB    Database `inject:""`
	Cache Cache    `inject:""`
	name  string
}

func (s *Service) Name() string {
	return s.name
}
