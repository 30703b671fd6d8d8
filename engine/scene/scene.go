package scene

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/program"
	"github.com/google/uuid"
)

// Scene is the scene graph together with the camera and the point lights it is viewed and lit by.
// The graph is rooted at a single node created with the scene; everything drawable hangs below it.
// Scenes can be hot-swapped via the Active flag to switch between different views.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// SetName sets the scene's identifier.
	SetName(name string)

	// Active returns whether this scene is currently active for rendering.
	Active() bool

	// SetActive sets whether this scene is active for rendering.
	SetActive(active bool)

	// Camera returns the scene's camera.
	Camera() camera.Camera

	// SetCamera replaces the scene's camera.
	//
	// Parameters:
	//   - cam: the new camera
	SetCamera(cam camera.Camera)

	// Root returns the root node of the graph.
	//
	// Returns:
	//   - Node: the root node
	Root() Node

	// CreateNode creates a child of the root node.
	//
	// Parameters:
	//   - opts: a variadic list of NodeBuilderOption functions to configure the node
	//
	// Returns:
	//   - Node: the new node
	CreateNode(opts ...NodeBuilderOption) Node

	// Find searches the graph for a node identity.
	//
	// Parameters:
	//   - id: the node identity
	//
	// Returns:
	//   - Node: the node, or nil if it is not in the graph
	Find(id uuid.UUID) Node

	// Count returns the number of nodes in the graph, excluding the root.
	//
	// Returns:
	//   - int: the node count
	Count() int

	// AddLight appends a light to the scene.
	//
	// Parameters:
	//   - l: the light to add
	AddLight(l light.Light)

	// RemoveLight removes a light from the scene.
	//
	// Parameters:
	//   - l: the light to remove
	RemoveLight(l light.Light)

	// Lights returns a copy of the scene's light list.
	//
	// Returns:
	//   - []light.Light: the lights in insertion order
	Lights() []light.Light

	// TraverseAndDraw draws the whole graph, see Node.TraverseAndDraw.
	//
	// Parameters:
	//   - active: the program the root inherits
	//
	// Returns:
	//   - error: the first drawable error
	TraverseAndDraw(active program.Program) error

	// Destroy tears down the graph. A fresh empty root replaces it.
	Destroy()
}

type scene struct {
	mu *sync.RWMutex

	name   string
	active bool

	cam    camera.Camera
	root   Node
	lights []light.Light
}

// Ensure scene implements Scene interface.
var _ Scene = &scene{}

// NewScene creates a new Scene with an empty graph. The camera is required and NewScene
// panics if it is nil.
//
// Parameters:
//   - name: the name of the scene
//   - cam: the camera to attach (must not be nil)
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, cam camera.Camera, options ...SceneBuilderOption) Scene {
	if cam == nil {
		panic("scene: NewScene requires a non-nil Camera")
	}
	s := &scene{
		mu:   &sync.RWMutex{},
		name: name,
		cam:  cam,
		root: NewNode(WithName("root")),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Camera() camera.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cam
}

func (s *scene) SetCamera(cam camera.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cam = cam
}

func (s *scene) Root() Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

func (s *scene) CreateNode(opts ...NodeBuilderOption) Node {
	return s.Root().CreateChild(opts...)
}

func (s *scene) Find(id uuid.UUID) Node {
	return s.Root().Find(id)
}

func (s *scene) Count() int {
	return s.Root().Count() - 1
}

func (s *scene) AddLight(l light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lights = append(s.lights, l)
}

func (s *scene) RemoveLight(l light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.lights {
		if existing == l {
			s.lights = append(s.lights[:i], s.lights[i+1:]...)
			return
		}
	}
}

func (s *scene) Lights() []light.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]light.Light, len(s.lights))
	copy(out, s.lights)
	return out
}

func (s *scene) TraverseAndDraw(active program.Program) error {
	return s.Root().TraverseAndDraw(active)
}

func (s *scene) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root.Destroy()
	s.root = NewNode(WithName("root"))
}
