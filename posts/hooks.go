package posts

import (
	"go.uber.org/zap"

	"github.com/cppla/postcore/models"
	"github.com/cppla/postcore/plugins"
)

// Hook names.
const (
	HookFilterCreate = "filter:post.create"
	HookFilterGet    = "filter:post.get"
	HookActionSave   = "action:post.save"
)

// CreatePayload is the filter:post.create payload: the candidate record and
// the submission it was built from. Stages may rewrite Post in place.
type CreatePayload struct {
	Post *models.Post
	Data CreateInput
}

// GetPayload is the filter:post.get payload. UID is the submitter's own uid,
// even when the post was stored anonymously.
type GetPayload struct {
	Post *models.Post
	UID  int64
}

// SavePayload is the action:post.save payload. Post is a private copy.
type SavePayload struct {
	Post models.Post
}

// Hooks are the extension points of the post pipeline.
type Hooks struct {
	Create *plugins.Chain[CreatePayload]
	Get    *plugins.Chain[GetPayload]
	Save   *plugins.Notifier[SavePayload]
}

func NewHooks(logger *zap.Logger) *Hooks {
	return &Hooks{
		Create: plugins.NewChain[CreatePayload](HookFilterCreate, logger),
		Get:    plugins.NewChain[GetPayload](HookFilterGet, logger),
		Save:   plugins.NewNotifier[SavePayload](HookActionSave, logger),
	}
}
