package engine

import "context"

// Animator renders a talking-head video from a still image and a speech
// recording. It returns the path of the produced video.
type Animator interface {
	Animate(ctx context.Context, imagePath, audioPath string) (string, error)
	Close() error
}
