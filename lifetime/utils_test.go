package lifetime_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

type HelloService interface {
	Hello() string
}

type ServiceWithPublicFields struct {
	Dependency   NameService
	someProperty string
}

func (s ServiceWithPublicFields) SomeProperty() string {
	return s.someProperty
}

func (s *ServiceWithPublicFields) Hello() string {
	return "Hello " + s.Dependency.Name()
}

func (s ServiceWithPublicFields) Name() string {
	return s.Dependency.Name()
}

type NameService interface {
	Name() string
}

type NameProvider string

func (s NameProvider) Name() string {
	return string(s)
}

type TableTimer struct {
	ctx         context.Context
	nameService NameService
}

func (t *TableTimer) Expired() bool {
	return t.ctx.Err() != nil
}

type Impostor struct {
	hero *Hero
	name string
}

func (i *Impostor) Name() string {
	return i.name
}

type Hero struct {
	name string
}

func (h *Hero) Announce() string {
	return fmt.Sprintf("%s is our hero!", h.name)
}

// Journal records closed services in the order they were closed.
type Journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *Journal) write(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries = append(j.entries, entry)
}

func (j *Journal) Entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	return append([]string(nil), j.entries...)
}

type Connection struct {
	journal *Journal
	name    string
	closed  int
}

func (c *Connection) Close() error {
	c.closed++
	c.journal.write("close " + c.name)

	return nil
}

type Stream struct {
	journal     *Journal
	closed      int
	closedAsync int
}

func (s *Stream) Close() error {
	s.closed++
	s.journal.write("close stream")

	return nil
}

func (s *Stream) CloseAsync(context.Context) error {
	s.closedAsync++
	s.journal.write("close stream async")

	return nil
}

type Flusher struct {
	journal     *Journal
	closedAsync int
}

func (f *Flusher) CloseAsync(context.Context) error {
	f.closedAsync++
	f.journal.write("flush")

	return nil
}

type BrokenConnection struct{}

var errBrokenConnection = errors.New("connection is broken")

func (BrokenConnection) Close() error {
	return errBrokenConnection
}

func nameProviderConstructor() (NameProvider, error) {
	return NameProvider("Bob"), nil
}

func nameServiceConstructor() (NameService, error) {
	return NameProvider("Bob"), nil
}

func tableTimerConstructor(ctx context.Context, nameService NameService) (*TableTimer, error) {
	return &TableTimer{ctx, nameService}, nil
}

func impostorConstructor(nameService NameService, hero *Hero) (*Impostor, error) {
	return &Impostor{name: nameService.Name(), hero: hero}, nil
}

func disguisedImpostorConstructor(impostor *Impostor) (*Hero, error) {
	return &Hero{name: impostor.Name()}, nil
}

func heroConstructor(nameService NameService) (*Hero, error) {
	return &Hero{nameService.Name()}, nil
}

func nameServiceConstructorWithCleanup(cleanup func()) func() (NameService, func(), error) {
	return func() (NameService, func(), error) {
		return NameProvider("bob"), cleanup, nil
	}
}

func scaredHeroConstructor(NameService) (*Hero, error) {
	panic(fmt.Errorf("scared"))
}

func connectionConstructor(journal *Journal) func() *Connection {
	return func() *Connection {
		return &Connection{journal: journal, name: "connection"}
	}
}

func reflectType[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
