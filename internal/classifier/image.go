package classifier

import "context"

// ImageClassifier is the optional image sub-classifier hook
// (spec.md §4.4): a ViT-class model accepting 224x224 RGB and
// returning an NSFW score. Like MLHead, no ONNX binding exists in the
// retrieved pack, so NullImageClassifier is the only shipped
// implementation.
type ImageClassifier interface {
	Available() bool
	Score(ctx context.Context, rgb224 []byte) (nsfwScore float64, err error)
}

// NullImageClassifier always reports itself unavailable.
type NullImageClassifier struct{}

func (NullImageClassifier) Available() bool { return false }
func (NullImageClassifier) Score(context.Context, []byte) (float64, error) {
	return 0, nil
}
