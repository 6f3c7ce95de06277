package faceannotate

import "sync"

// CameraSelector tracks which physical camera is active.
type CameraSelector struct {
	mu     sync.Mutex
	facing Facing
}

func NewCameraSelector(initial Facing) *CameraSelector {
	return &CameraSelector{facing: initial}
}

func (s *CameraSelector) Facing() Facing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.facing
}

// Toggle switches between front and back and returns the new camera.
func (s *CameraSelector) Toggle() Facing {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.facing == Front {
		s.facing = Back
	} else {
		s.facing = Front
	}
	return s.facing
}
