package engine

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/capture"
	"github.com/Carmen-Shannon/oxy-deferred/engine/frame"
	"github.com/Carmen-Shannon/oxy-deferred/engine/profiler"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-deferred/engine/window"
)

// viewportSize is a resize request queued for the render loop.
type viewportSize struct {
	width, height int
}

// engine implements the Engine interface.
// The window thread only records input and the tick goroutine only measures time; the render
// goroutine owns every GPU call and every scene mutation.
type engine struct {
	tickRateChannel chan time.Duration
	tickChannel     chan float32
	resizeChannel   chan viewportSize

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	window     window.Window
	controller frame.Controller
	renderer   renderer.Renderer
	store      *config.Store

	profiler         *profiler.Profiler
	profilingEnabled bool

	captureDir       string
	captureRequested atomic.Bool
	captureCount     int

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	lastErr string
}

// Engine drives a frame.Controller: it forwards window input to the configuration store, queues
// viewport resizes for the render loop and renders one frame per loop iteration.
type Engine interface {
	// Window returns the window, or nil for a headless engine.
	Window() window.Window

	// Controller returns the frame controller.
	Controller() frame.Controller

	// Config returns the configuration store read each frame.
	Config() *config.Store

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick, e.g. to animate the scene.
	// The callback runs on the render goroutine between frames, so it may mutate the scene, its
	// lights and its camera. Ticks that elapse during a long frame are merged into one call.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// HandleKey applies a key press: B, D, R, O and C toggle bloom, depth of field, reflections,
	// ambient occlusion and the G-buffer view, P queues a capture of the next presented frame.
	//
	// Parameters:
	//   - keyCode: the key code
	//
	// Returns:
	//   - bool: true if the key was bound
	HandleKey(keyCode uint32) bool

	// HandleScroll moves the focal depth by one step per notch.
	//
	// Parameters:
	//   - notches: the wheel offset
	HandleScroll(notches float64)

	// RequestResize queues a viewport size for the render loop. Only the latest request is kept.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	RequestResize(width, height int)

	// RenderFrame applies any queued resize and renders one frame with the current configuration.
	//
	// Returns:
	//   - pass.FrameReport: what the frame did
	//   - error: a resize or frame error
	RenderFrame() (pass.FrameReport, error)

	// Run starts the engine loops and the window message loop (blocks until the window closes).
	Run()

	// Quit signals all engine goroutines to stop. Safe to call multiple times.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates an Engine around a frame controller.
//
// Parameters:
//   - controller: the controller to drive
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
//   - error: an error if the default configuration store cannot be created
func NewEngine(controller frame.Controller, options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		tickChannel:     make(chan float32, 1),
		resizeChannel:   make(chan viewportSize, 1),
		quitChannel:     make(chan struct{}),
		controller:      controller,
		engineTickRate:  time.Second / 60,
		captureDir:      ".",
	}

	for _, opt := range options {
		opt(e)
	}

	if e.store == nil {
		store, err := config.NewStore(config.Defaults())
		if err != nil {
			return nil, err
		}
		e.store = store
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler()
	}

	if e.window != nil {
		e.window.SetResizeCallback(e.RequestResize)
		e.window.SetKeyPressCallback(func(keyCode uint32) {
			if e.HandleKey(keyCode) {
				e.window.SetTitle(e.title())
			}
		})
		e.window.SetScrollCallback(func(notches float64) {
			e.HandleScroll(notches)
			e.window.SetTitle(e.title())
		})
		e.window.SetTitle(e.title())
	}

	return e, nil
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Controller() frame.Controller {
	return e.controller
}

func (e *engine) Config() *config.Store {
	return e.store
}

func (e *engine) HandleKey(keyCode uint32) bool {
	var effect config.Effect
	switch keyCode {
	case common.KeyB:
		effect = config.EffectBloom
	case common.KeyD:
		effect = config.EffectDepthOfField
	case common.KeyR:
		effect = config.EffectReflections
	case common.KeyO:
		effect = config.EffectAmbientOcclusion
	case common.KeyC:
		effect = config.EffectGBufferView
	case common.KeyP:
		e.captureRequested.Store(true)
		return true
	default:
		return false
	}
	on := e.store.Toggle(effect)
	log.Printf("[Engine] %s %s", effect, onOff(on))
	return true
}

func (e *engine) HandleScroll(notches float64) {
	if notches == 0 {
		return
	}
	d := e.store.AdjustFocalDepth(notches)
	log.Printf("[Engine] focal depth %.2f", d)
}

func (e *engine) RequestResize(width, height int) {
	next := viewportSize{width, height}
	select {
	case e.resizeChannel <- next:
	default:
		select {
		case <-e.resizeChannel:
		default:
		}
		e.resizeChannel <- next
	}
}

func (e *engine) RenderFrame() (pass.FrameReport, error) {
	select {
	case size := <-e.resizeChannel:
		if err := e.controller.OnViewportResized(size.width, size.height); err != nil {
			// Retry on the next frame; the buffers stay released until a resize succeeds.
			e.RequestResize(size.width, size.height)
			return pass.FrameReport{}, err
		}
	default:
	}

	report, err := e.controller.RenderFrame(e.store.Snapshot())
	if err != nil {
		return report, err
	}

	if e.captureRequested.CompareAndSwap(true, false) {
		if err := e.capture(); err != nil {
			log.Printf("[Engine] %v", err)
		}
	}
	return report, nil
}

// capture writes the presented frame to the next numbered file in the capture directory.
func (e *engine) capture() error {
	if e.renderer == nil {
		return fmt.Errorf("capture: no renderer configured")
	}
	e.captureCount++
	path := filepath.Join(e.captureDir, fmt.Sprintf("frame_%03d.png", e.captureCount))
	if err := capture.Frame(e.renderer, path); err != nil {
		return err
	}
	log.Printf("[Engine] captured %s", path)
	return nil
}

func (e *engine) Run() {
	e.running.Store(true)
	e.handle()
	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
}

func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running.Store(false)
		close(e.quitChannel)
	})
}

// handle launches the engine and render goroutines.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

// handleEngine runs the fixed-rate tick loop and listens for tick rate changes.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			e.postTick(dt)
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// postTick hands a tick to the render loop, merging it with a tick that was not consumed yet.
func (e *engine) postTick(dt float32) {
	for {
		select {
		case e.tickChannel <- dt:
			return
		default:
		}
		select {
		case pending := <-e.tickChannel:
			dt += pending
		default:
		}
	}
}

// runPendingTick invokes the tick callback with the queued delta, if any.
func (e *engine) runPendingTick() {
	select {
	case dt := <-e.tickChannel:
		if e.tickCallback != nil {
			e.tickCallback(dt)
		}
	default:
	}
}

// handleRender renders frames until quit. Recovers from panics and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Engine] render goroutine recovered from panic: %v", r)
			e.signalQuit()
		}
	}()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			start := time.Now()

			e.runPendingTick()
			if _, err := e.RenderFrame(); err != nil {
				e.logFrameError(err)
			} else {
				e.lastErr = ""
			}

			if e.profilingEnabled && e.profiler != nil {
				e.profiler.Tick()
			}

			if e.renderFrameLimit > 0 {
				if remaining := e.renderFrameLimit - time.Since(start); remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// logFrameError logs err unless it repeats the previous frame's error.
func (e *engine) logFrameError(err error) {
	if msg := err.Error(); msg != e.lastErr {
		log.Printf("[Engine] frame failed: %v", err)
		e.lastErr = msg
	}
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate. If the engine is running the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Second / time.Duration(fps)

	if !e.running.Load() {
		e.engineTickRate = newRate
		return
	}
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Second / time.Duration(fps)
}

// title summarizes the effect switches for the window title bar.
func (e *engine) title() string {
	cfg := e.store.Snapshot()
	parts := []string{
		"AO " + onOff(cfg.AmbientOcclusion.Enabled),
		"SSR " + onOff(cfg.Reflections.Enabled),
		"Bloom " + onOff(cfg.Bloom.Enabled),
		fmt.Sprintf("DOF %s @ %.1f", onOff(cfg.DepthOfField.Enabled), cfg.DepthOfField.FocalDepth),
	}
	if cfg.Debug.GBufferView {
		parts = append(parts, "G-buffer")
	}
	return "oxy-deferred | " + strings.Join(parts, " | ")
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
