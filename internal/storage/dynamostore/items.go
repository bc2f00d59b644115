package dynamostore

import (
	"github.com/dpup/wolfcreekpass/server/internal/model"
)

type cameraItem struct {
	ItemKeys
	model.Camera
}

type captureItem struct {
	ItemKeys
	model.CaptureRecord
}

type routeItem struct {
	ItemKeys
	model.Route
}

type cycleItem struct {
	ItemKeys
	model.CycleSummary
}

type ScopedMeta struct {
	BatchCycleID string `json:"batch_cycle_id"`
	Seq          int    `json:"seq"`
}

type conditionItem struct {
	ItemKeys
	ScopedMeta
	model.RoadCondition
}

type eventItem struct {
	ItemKeys
	ScopedMeta
	model.Event
}

type weatherItem struct {
	ItemKeys
	ScopedMeta
	model.WeatherStation
}

type passItem struct {
	ItemKeys
	ScopedMeta
	model.MountainPass
}

type plowItem struct {
	ItemKeys
	ScopedMeta
	model.SnowPlow
}

type hashItem struct {
	ItemKeys
	CameraID  int    `json:"camera_id"`
	HashHex   string `json:"hash_hex"`
	UpdatedAt string `json:"updated_at"`
}
