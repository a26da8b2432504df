package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	assert.NotPanics(t, func() {
		p := NoopPipelineHooks{}
		p.OnRunStart(ctx, "matmul", 2)
		p.OnRunComplete(ctx, "matmul", 12, time.Second, nil)
		p.OnTransformStart(ctx, "swizzle", []string{"K", "M"})
		p.OnTransformComplete(ctx, "swizzle", time.Second, nil)

		c := NoopCacheHooks{}
		c.OnCacheHit(ctx, "run")
		c.OnCacheMiss(ctx, "run")
		c.OnCacheSet(ctx, "artifact", 1024)

		h := NoopHTTPHooks{}
		h.OnRequest(ctx, "POST", "/v1/run")
		h.OnResponse(ctx, "POST", "/v1/run", 200, time.Second)
		h.OnError(ctx, "POST", "/v1/run", nil)
	})
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	assert.IsType(t, NoopPipelineHooks{}, Pipeline())
	assert.IsType(t, NoopCacheHooks{}, Cache())
	assert.IsType(t, NoopHTTPHooks{}, HTTP())

	customPipeline := &testPipelineHooks{}
	SetPipelineHooks(customPipeline)
	assert.Same(t, customPipeline, Pipeline())

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	assert.Same(t, customCache, Cache())

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	assert.Same(t, customHTTP, HTTP())

	Reset()
	assert.IsType(t, NoopPipelineHooks{}, Pipeline())
	assert.IsType(t, NoopCacheHooks{}, Cache())
	assert.IsType(t, NoopHTTPHooks{}, HTTP())
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	custom := &testPipelineHooks{}
	SetPipelineHooks(custom)
	SetPipelineHooks(nil)
	assert.Same(t, custom, Pipeline(), "SetPipelineHooks(nil) should be ignored")
}

type testPipelineHooks struct{ NoopPipelineHooks }
type testCacheHooks struct{ NoopCacheHooks }
type testHTTPHooks struct{ NoopHTTPHooks }
