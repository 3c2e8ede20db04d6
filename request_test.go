package di_test

import (
	"context"
	"sync"
	"testing"

	"github.com/scopekit/di"
	"github.com/scopekit/di/mock"
	"github.com/stretchr/testify/suite"
)

type RequestTestSuite struct {
	suite.Suite
	container *di.Container
}

func (s *RequestTestSuite) SetupTest() {
	s.container = di.New()
	_, err := di.Register[mock.Database](s.container, func() mock.Database {
		return &mock.DB{}
	}, di.ScopeRequest)
	s.Require().NoError(err)
}

func (s *RequestTestSuite) TestNoActiveScope() {
	_, err := di.Resolve[mock.Database](s.container)
	var notStarted *di.ContextNotStartedError
	s.ErrorAs(err, &notStarted)
	s.Equal(di.ScopeRequest, notStarted.Scope)
}

func (s *RequestTestSuite) TestIdentityWithinScope() {
	handle := s.container.EnterRequestScope()
	defer handle.Close()

	first, err := di.Resolve[mock.Database](s.container)
	s.NoError(err)
	second, err := di.Resolve[mock.Database](s.container)
	s.NoError(err)
	s.Same(first, second)
}

func (s *RequestTestSuite) TestIsolationBetweenScopes() {
	handle := s.container.EnterRequestScope()
	first, err := di.Resolve[mock.Database](s.container)
	s.NoError(err)
	s.NoError(handle.Close())

	handle = s.container.EnterRequestScope()
	second, err := di.Resolve[mock.Database](s.container)
	s.NoError(err)
	s.NoError(handle.Close())

	s.NotSame(first, second)

	_, err = di.Resolve[mock.Database](s.container)
	var notStarted *di.ContextNotStartedError
	s.ErrorAs(err, &notStarted)
}

func (s *RequestTestSuite) TestNestedScopesRestorePrior() {
	outer := s.container.EnterRequestScope()
	outerDB, err := di.Resolve[mock.Database](s.container)
	s.NoError(err)

	inner := s.container.EnterRequestScope()
	innerDB, err := di.Resolve[mock.Database](s.container)
	s.NoError(err)
	s.NotSame(outerDB, innerDB)
	s.NoError(inner.Close())

	// The outer scope is ambient again.
	restored, err := di.Resolve[mock.Database](s.container)
	s.NoError(err)
	s.Same(outerDB, restored)
	s.NoError(outer.Close())
}

func (s *RequestTestSuite) TestScopePropagatesThroughContext() {
	ctx, handle := s.container.EnterRequestScopeContext(context.Background())
	defer handle.Close()

	parentDB, err := di.ResolveContext[mock.Database](ctx, s.container)
	s.NoError(err)

	var childDB mock.Database
	var childErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		childDB, childErr = di.ResolveContext[mock.Database](ctx, s.container)
	}()
	<-done

	s.NoError(childErr)
	s.Same(parentDB, childDB)
}

func (s *RequestTestSuite) TestConcurrentScopesAreIndependent() {
	const workers = 8
	instances := make([]mock.Database, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.container.RequestScope(func() error {
				db, err := di.Resolve[mock.Database](s.container)
				instances[i] = db
				return err
			})
			s.NoError(err)
		}(i)
	}
	wg.Wait()

	seen := make(map[mock.Database]bool, workers)
	for _, db := range instances {
		s.NotNil(db)
		s.False(seen[db], "request contexts must not share instances")
		seen[db] = true
	}
}

func (s *RequestTestSuite) TestRequestScopeReleasesOnPanic() {
	s.Panics(func() {
		_ = s.container.RequestScope(func() error {
			panic("handler blew up")
		})
	})

	_, err := di.Resolve[mock.Database](s.container)
	var notStarted *di.ContextNotStartedError
	s.ErrorAs(err, &notStarted)
}

func (s *RequestTestSuite) TestRequestScopedResourceTeardown() {
	rec := &mock.Recorder{}
	_, err := di.Register[mock.Cache](s.container, func() (mock.Cache, func() error, error) {
		rec.Record("open")
		return mock.NewMemoryCache(nil), func() error {
			rec.Record("close")
			return nil
		}, nil
	}, di.ScopeRequest)
	s.NoError(err)

	err = s.container.RequestScope(func() error {
		_, err := di.Resolve[mock.Cache](s.container)
		return err
	})
	s.NoError(err)
	s.Equal([]string{"open", "close"}, rec.Events())
}

func (s *RequestTestSuite) TestClosedScopeRejectsSavedContext() {
	rec := &mock.Recorder{}
	_, err := di.Register[mock.Cache](s.container, func() (mock.Cache, func() error, error) {
		rec.Record("open")
		return mock.NewMemoryCache(nil), func() error {
			rec.Record("close")
			return nil
		}, nil
	}, di.ScopeRequest)
	s.NoError(err)

	ctx, handle := s.container.EnterRequestScopeContext(context.Background())
	_, err = di.ResolveContext[mock.Cache](ctx, s.container)
	s.NoError(err)
	s.NoError(handle.Close())
	s.Equal([]string{"open", "close"}, rec.Events())

	// The saved ctx still carries the drained scope; resolving through it
	// must fail rather than revive the cache and strand a new teardown.
	_, err = di.ResolveContext[mock.Cache](ctx, s.container)
	var notStarted *di.ContextNotStartedError
	s.ErrorAs(err, &notStarted)
	s.Equal(di.ScopeRequest, notStarted.Scope)
	s.Equal([]string{"open", "close"}, rec.Events())
}

func (s *RequestTestSuite) TestRequestScopedAsyncResourceTeardown() {
	rec := &mock.Recorder{}
	_, err := di.Register[mock.Cache](s.container, func(ctx context.Context) (mock.Cache, func(context.Context) error, error) {
		rec.Record("open")
		return mock.NewMemoryCache(nil), func(ctx context.Context) error {
			rec.Record("close")
			return nil
		}, nil
	}, di.ScopeRequest)
	s.NoError(err)

	ctx, handle := s.container.EnterRequestScopeContext(context.Background())
	_, err = di.ResolveContext[mock.Cache](ctx, s.container)
	s.NoError(err)
	s.Equal([]string{"open"}, rec.Events())

	s.NoError(handle.CloseContext(context.Background()))
	s.Equal([]string{"open", "close"}, rec.Events())
}

func (s *RequestTestSuite) TestHandleCloseIsIdempotent() {
	handle := s.container.EnterRequestScope()
	s.NoError(handle.Close())
	s.NoError(handle.Close())
}

func TestRequestTestSuite(t *testing.T) {
	suite.Run(t, new(RequestTestSuite))
}
