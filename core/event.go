package core

// Advert event types broadcast on the feed.
const (
	EventAdvertCreated  = "advert-created"
	EventAdvertReplaced = "advert-replaced"
	EventAdvertDeleted  = "advert-deleted"
)

type (
	AdvertEvent struct {
		Type   string  `json:"type"`
		ID     string  `json:"id"`
		Owner  string  `json:"owner"`
		Advert *Advert `json:"advert,omitempty"`
	}

	// EventPublisher fans advert events out to subscribers. Publish must not block.
	EventPublisher interface {
		Publish(event AdvertEvent)
	}
)
