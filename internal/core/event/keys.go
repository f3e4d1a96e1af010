package event

// Keys the World provides on its own hub.
const (
	KeyEntityCount = "ecs.entity_count" // func() int
	KeyFrame       = "ecs.frame"        // func() uint64
	KeyStats       = "ecs.stats"        // func() ecs.Stats
)
