package dynamostore

import "fmt"

// Attribute and index names of the single-table layout
const (
	attrPK     = "PK"
	attrSK     = "SK"
	attrGSI1PK = "GSI1PK"
	attrGSI1SK = "GSI1SK"
	gsi1       = "GSI1"

	skMeta   = "META"
	skHash   = "HASH"
	pkCycles = "CYCLES"
)

// Sort key tags of the cycle-scoped entities on GSI1
const (
	tagCapture   = "CAPTURE#"
	tagCondition = "CONDITION#"
	tagEvent     = "EVENT#"
	tagWeather   = "WEATHER#"
	tagPass      = "PASS#"
	tagPlow      = "PLOW#"
)

// ItemKeys are the key attributes carried by every item
type ItemKeys struct {
	PK     string `json:"PK"`
	SK     string `json:"SK"`
	GSI1PK string `json:"GSI1PK,omitempty"`
	GSI1SK string `json:"GSI1SK,omitempty"`
	Entity string `json:"entity"`
}

func cameraKeys(id int) ItemKeys {
	return ItemKeys{
		PK:     fmt.Sprintf("CAMERA#%d", id),
		SK:     skMeta,
		GSI1PK: "CAMERA",
		GSI1SK: fmt.Sprintf("%010d", id),
		Entity: "camera",
	}
}

func captureKeys(cameraID int, cycleID string) ItemKeys {
	return ItemKeys{
		PK:     fmt.Sprintf("CAMERA#%d", cameraID),
		SK:     tagCapture + cycleID,
		GSI1PK: cyclePK(cycleID),
		GSI1SK: fmt.Sprintf("%s%010d", tagCapture, cameraID),
		Entity: "capture",
	}
}

func routeKeys(routeID string) ItemKeys {
	return ItemKeys{
		PK:     "ROUTE#" + routeID,
		SK:     skMeta,
		GSI1PK: "ROUTE",
		GSI1SK: routeID,
		Entity: "route",
	}
}

func cycleKeys(cycleID string) ItemKeys {
	return ItemKeys{
		PK:     pkCycles,
		SK:     "CYCLE#" + cycleID,
		GSI1PK: cyclePK(cycleID),
		GSI1SK: skMeta,
		Entity: "cycle",
	}
}

// scopedKeys places one element of a cycle batch. The natural id keys the
// partition; seq keeps batch order and keeps repeated ids apart.
func scopedKeys(tag, naturalID, cycleID string, seq int) ItemKeys {
	return ItemKeys{
		PK:     tag + naturalID,
		SK:     fmt.Sprintf("CYCLE#%s#%06d", cycleID, seq),
		GSI1PK: cyclePK(cycleID),
		GSI1SK: fmt.Sprintf("%s%06d", tag, seq),
		Entity: tag[:len(tag)-1],
	}
}

func hashKeys(cameraID int) ItemKeys {
	return ItemKeys{
		PK:     fmt.Sprintf("HASH#%d", cameraID),
		SK:     skHash,
		Entity: "image_hash",
	}
}

func cyclePK(cycleID string) string {
	return "CYCLE#" + cycleID
}
