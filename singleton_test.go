package di_test

import (
	"context"
	"testing"

	"github.com/scopekit/di"
	"github.com/scopekit/di/mock"
	"github.com/stretchr/testify/suite"
)

type SingletonTestSuite struct {
	suite.Suite
	container *di.Container
	recorder  *mock.Recorder
}

func (s *SingletonTestSuite) SetupTest() {
	s.container = di.New()
	s.recorder = &mock.Recorder{}
}

func (s *SingletonTestSuite) TestStartEagerlyOpensResources() {
	rec := s.recorder
	_, err := di.Register[mock.Database](s.container, func() (mock.Database, func() error, error) {
		rec.Record("open:db")
		return &mock.DB{}, func() error {
			rec.Record("close:db")
			return nil
		}, nil
	}, di.ScopeSingleton)
	s.NoError(err)
	_, err = di.Register[mock.Mailer](s.container, func() mock.Mailer {
		rec.Record("build:mailer")
		return &mock.SMTPMailer{}
	}, di.ScopeSingleton)
	s.NoError(err)

	s.NoError(s.container.Start())
	// The resource opened eagerly; the plain singleton stays lazy.
	s.Equal([]string{"open:db"}, rec.Events())

	_, err = di.Resolve[mock.Mailer](s.container)
	s.NoError(err)
	s.Equal([]string{"open:db", "build:mailer"}, rec.Events())
}

func (s *SingletonTestSuite) TestStartOrderFollowsRegistration() {
	s.registerNamedResource("alpha")
	s.registerNamedResource("beta")
	s.registerNamedResource("gamma")

	s.NoError(s.container.Start())
	s.Equal([]string{"open:alpha", "open:beta", "open:gamma"}, s.recorder.Events())

	s.NoError(s.container.Close())
	s.Equal([]string{
		"open:alpha", "open:beta", "open:gamma",
		"close:gamma", "close:beta", "close:alpha",
	}, s.recorder.Events())
}

func (s *SingletonTestSuite) registerNamedResource(name string) {
	rec := s.recorder
	_, err := s.container.Register(name, func() (string, func() error, error) {
		rec.Record("open:" + name)
		return name, func() error {
			rec.Record("close:" + name)
			return nil
		}, nil
	}, di.ScopeSingleton)
	s.Require().NoError(err)
}

func (s *SingletonTestSuite) TestSyncStartRejectsAsyncResource() {
	_, err := di.Register[mock.Database](s.container, func(ctx context.Context) (mock.Database, func(context.Context) error, error) {
		return &mock.DB{}, func(ctx context.Context) error { return nil }, nil
	}, di.ScopeSingleton)
	s.NoError(err)

	err = s.container.Start()
	var invalidMode *di.InvalidModeError
	s.ErrorAs(err, &invalidMode)
	s.Equal(di.KindAsyncResource, invalidMode.Kind)
}

func (s *SingletonTestSuite) TestStartContextOpensBothKinds() {
	rec := s.recorder
	_, err := di.Register[mock.Database](s.container, func() (mock.Database, func() error, error) {
		rec.Record("open:sync")
		return &mock.DB{}, func() error {
			rec.Record("close:sync")
			return nil
		}, nil
	}, di.ScopeSingleton)
	s.NoError(err)
	_, err = di.Register[mock.Cache](s.container, func(ctx context.Context) (mock.Cache, func(context.Context) error, error) {
		rec.Record("open:async")
		return mock.NewMemoryCache(nil), func(ctx context.Context) error {
			rec.Record("close:async")
			return nil
		}, nil
	}, di.ScopeSingleton)
	s.NoError(err)

	s.NoError(s.container.StartContext(context.Background()))
	s.Equal([]string{"open:sync", "open:async"}, rec.Events())

	s.NoError(s.container.CloseContext(context.Background()))
	s.Equal([]string{"open:sync", "open:async", "close:sync", "close:async"}, rec.Events())
}

func (s *SingletonTestSuite) TestRestartAfterClose() {
	s.registerNamedResource("db")

	s.NoError(s.container.Start())
	s.NoError(s.container.Close())
	s.NoError(s.container.Start())
	s.NoError(s.container.Close())

	s.Equal([]string{"open:db", "close:db", "open:db", "close:db"}, s.recorder.Events())
}

func TestSingletonTestSuite(t *testing.T) {
	suite.Run(t, new(SingletonTestSuite))
}
