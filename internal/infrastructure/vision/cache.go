package vision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"ecoregen/internal/domain/entity"
	"ecoregen/internal/domain/port"
	apperrors "ecoregen/internal/errors"
	"ecoregen/internal/logger"
)

// ModelCache лениво загружает модели по методу и держит их до конца процесса.
// Одновременные первые запросы разделяют одну загрузку. Неудачная загрузка
// не запоминается, следующий запрос попробует снова.
type ModelCache struct {
	backends map[entity.Method]port.DetectorBackend

	mu     sync.RWMutex
	loaded map[entity.Method]port.Detector

	group singleflight.Group
}

// NewModelCache создаёт кеш для набора бэкендов.
func NewModelCache(backends ...port.DetectorBackend) *ModelCache {
	c := &ModelCache{
		backends: make(map[entity.Method]port.DetectorBackend, len(backends)),
		loaded:   make(map[entity.Method]port.Detector, len(backends)),
	}
	for _, b := range backends {
		c.backends[b.Method()] = b
	}
	return c
}

// Detector возвращает загруженную модель метода, загружая её при первом обращении.
// Загрузка не прерывается отменой ctx, но вызывающий перестаёт её ждать.
func (c *ModelCache) Detector(ctx context.Context, method entity.Method) (port.Detector, error) {
	if d, ok := c.cached(method); ok {
		return d, nil
	}

	backend, ok := c.backends[method]
	if !ok {
		return nil, apperrors.NewBackendUnavailableError(fmt.Sprintf("backend %q is not configured", method), nil)
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(string(method), func() (any, error) {
		if d, ok := c.cached(method); ok {
			return d, nil
		}
		d, err := c.load(loadCtx, backend)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.loaded[method] = d
		c.mu.Unlock()
		return d, nil
	})

	select {
	case <-ctx.Done():
		return nil, apperrors.NewBackendUnavailableError(fmt.Sprintf("waiting for %s model", method), ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(port.Detector), nil
	}
}

// Warm загружает модели заранее, вне пути обработки запросов.
func (c *ModelCache) Warm(ctx context.Context, methods ...entity.Method) error {
	var errs []error
	for _, m := range methods {
		if _, err := c.Detector(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *ModelCache) cached(method entity.Method) (port.Detector, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.loaded[method]
	return d, ok
}

func (c *ModelCache) load(ctx context.Context, backend port.DetectorBackend) (d port.Detector, err error) {
	log := logger.WithFields(logrus.Fields{"backend": backend.Method()})
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			d = nil
			err = apperrors.NewBackendUnavailableError(fmt.Sprintf("load %s model", backend.Method()), fmt.Errorf("panic: %v", r))
		}
	}()

	d, err = backend.Load(ctx)
	if err != nil {
		log.WithError(err).Warn("model load failed")
		return nil, apperrors.NewBackendUnavailableError(fmt.Sprintf("load %s model", backend.Method()), err)
	}

	log.WithField("elapsed", time.Since(start).String()).Info("model loaded")
	return d, nil
}

var _ port.DetectorProvider = (*ModelCache)(nil)
