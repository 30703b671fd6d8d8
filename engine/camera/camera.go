package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/go-gl/mathgl/mgl32"
)

type cameraImpl struct {
	mu *sync.Mutex

	position mgl32.Vec3
	target   mgl32.Vec3
	up       mgl32.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32

	viewMatrix                  mgl32.Mat4
	projectionMatrix            mgl32.Mat4
	viewProjectionMatrix        mgl32.Mat4
	inverseViewProjectionMatrix mgl32.Mat4
}

// Camera defines the interface for the camera system.
// The camera holds a look-at pose and perspective settings and recomputes its
// view and projection matrices whenever one of them changes.
type Camera interface {
	// Position returns the camera's world-space position.
	//
	// Returns:
	//   - mgl32.Vec3: the eye position
	Position() mgl32.Vec3

	// Target returns the look-at point.
	//
	// Returns:
	//   - mgl32.Vec3: the world-space target
	Target() mgl32.Vec3

	// Up returns the camera's up vector.
	//
	// Returns:
	//   - mgl32.Vec3: the up vector
	Up() mgl32.Vec3

	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: far plane distance
	Far() float32

	// ViewMatrix returns the current view matrix.
	//
	// Returns:
	//   - mgl32.Mat4: the view matrix
	ViewMatrix() mgl32.Mat4

	// ProjectionMatrix returns the current projection matrix, mapping depth to [0, 1].
	//
	// Returns:
	//   - mgl32.Mat4: the projection matrix
	ProjectionMatrix() mgl32.Mat4

	// ViewProjectionMatrix returns the current combined view-projection matrix.
	//
	// Returns:
	//   - mgl32.Mat4: projection × view
	ViewProjectionMatrix() mgl32.Mat4

	// InverseViewProjectionMatrix returns the inverse of the combined view-projection matrix.
	// The background pass uses it to turn screen positions into view directions.
	//
	// Returns:
	//   - mgl32.Mat4: the inverse view-projection matrix
	InverseViewProjectionMatrix() mgl32.Mat4

	// SetPosition sets the camera's world-space position and recomputes matrices.
	//
	// Parameters:
	//   - x, y, z: position components
	SetPosition(x, y, z float32)

	// SetTarget sets the look-at point and recomputes matrices.
	//
	// Parameters:
	//   - x, y, z: target components
	SetTarget(x, y, z float32)

	// SetUp sets the camera's up vector and recomputes matrices.
	//
	// Parameters:
	//   - x, y, z: up vector components
	SetUp(x, y, z float32)

	// SetFov sets the field of view in radians and recomputes matrices.
	//
	// Parameters:
	//   - fov: field of view in radians
	SetFov(fov float32)

	// SetAspect sets the aspect ratio (width / height) and recomputes matrices.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// SetNear sets the near clipping plane distance and recomputes matrices.
	//
	// Parameters:
	//   - near: near plane distance
	SetNear(near float32)

	// SetFar sets the far clipping plane distance and recomputes matrices.
	//
	// Parameters:
	//   - far: far plane distance
	SetFar(far float32)

	// SharedMatrices returns the values published in the SharedMatrices uniform block.
	//
	// Returns:
	//   - map[string]any: ViewMatrix, ProjectionMatrix and ViewPosition
	SharedMatrices() map[string]any
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera at (0, 0, 5) looking at the origin with a 60° field of view,
// near plane 0.1 and far plane 50.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:       &sync.Mutex{},
		position: mgl32.Vec3{0, 0, 5},
		up:       mgl32.Vec3{0, 1, 0},
		fov:      60.0 * (math.Pi / 180.0), // radians
		aspect:   1.0,
		near:     0.1,
		far:      50.0,
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) Target() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *cameraImpl) Up() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) ViewMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) InverseViewProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inverseViewProjectionMatrix
}

func (c *cameraImpl) SetPosition(x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = mgl32.Vec3{x, y, z}
	c.updateMatrices()
}

func (c *cameraImpl) SetTarget(x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = mgl32.Vec3{x, y, z}
	c.updateMatrices()
}

func (c *cameraImpl) SetUp(x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.up = mgl32.Vec3{x, y, z}
	c.updateMatrices()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) SetNear(near float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
	c.updateMatrices()
}

func (c *cameraImpl) SetFar(far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.far = far
	c.updateMatrices()
}

func (c *cameraImpl) SharedMatrices() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]any{
		"ViewMatrix":       c.viewMatrix,
		"ProjectionMatrix": c.projectionMatrix,
		"ViewPosition":     c.position,
	}
}

// updateMatrices recalculates the view, projection, view-projection and inverse view-projection matrices.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	c.viewMatrix = mgl32.LookAtV(c.position, c.target, c.up)
	c.projectionMatrix = common.Perspective(c.fov, c.aspect, c.near, c.far)
	c.viewProjectionMatrix = c.projectionMatrix.Mul4(c.viewMatrix)
	c.inverseViewProjectionMatrix = c.viewProjectionMatrix.Inv()
}
