package mapval

import "github.com/rmchallenge/companion/internal/gbx"

// The catalogs below pin down what stock map content looks like per
// environment. Anything outside them was built with an extension tool
// and cannot be loaded by an unmodified game install.

// sizeCatalog lists the grid dimensions the stock editor can produce.
var sizeCatalog = map[string][]gbx.Size{
	"Stadium": {
		{X: 32, Y: 32, Z: 32},
	},
	"Alpine": {
		{X: 45, Y: 32, Z: 45},
	},
	"Speed": {
		{X: 45, Y: 32, Z: 45},
	},
	"Rally": {
		{X: 45, Y: 32, Z: 45},
	},
	"Island": {
		{X: 45, Y: 36, Z: 45},
		{X: 90, Y: 36, Z: 90},
	},
	"Bay": {
		{X: 60, Y: 40, Z: 60},
	},
	"Coast": {
		{X: 54, Y: 24, Z: 54},
		{X: 108, Y: 24, Z: 108},
	},
}

// blockCatalog holds the stock building-block identifiers per
// environment. The lists are not exhaustive down to every curve
// variant; membership is also granted by family prefix, see
// knownBlock.
var blockCatalog = map[string][]string{
	"Stadium": {
		"StadiumRoadMain",
		"StadiumRoadMainGTCurve2",
		"StadiumRoadMainGTCurve3",
		"StadiumRoadMainCheckpoint",
		"StadiumRoadMainStartLine",
		"StadiumRoadMainFinishLine",
		"StadiumRoadMainTurbo",
		"StadiumRoadMainSlopeBase",
		"StadiumPlatform",
		"StadiumPlatformCheckpoint",
		"StadiumPlatformToRoadMain",
		"StadiumPlatformSlope2Straight",
		"StadiumPlatformWall",
		"StadiumPlatformLoopStart",
		"StadiumPlatformLoopEnd",
		"StadiumCircuitBase",
		"StadiumCircuitBorderStraight",
		"StadiumDirtRoad",
		"StadiumDirtRoadStart",
		"StadiumDirtRoadFinish",
		"StadiumDirtHill",
		"StadiumGrass",
		"StadiumPool",
		"StadiumWater",
		"StadiumFabricCross1x1",
		"StadiumInflatableCactus",
		"StadiumInflatableCastle",
		"StadiumSculptA",
		"StadiumSculptB",
	},
	"Alpine": {
		"AlpineRoad",
		"AlpineRoadStart",
		"AlpineRoadFinish",
		"AlpineRoadCheckpoint",
		"AlpineRoadSnow",
		"AlpineRoadIce",
		"AlpineRoadTunnel",
		"AlpineRoadBridge",
		"AlpineHill",
		"AlpineCliff",
		"AlpinePillar",
		"AlpineChalet",
		"AlpineSkiLift",
	},
	"Speed": {
		"SpeedRoad",
		"SpeedRoadStart",
		"SpeedRoadFinish",
		"SpeedRoadCheckpoint",
		"SpeedRoadDirt",
		"SpeedRoadBridge",
		"SpeedCanyon",
		"SpeedDune",
		"SpeedPlateau",
		"SpeedTunnel",
		"SpeedRockArch",
	},
	"Rally": {
		"RallyRoad",
		"RallyRoadStart",
		"RallyRoadFinish",
		"RallyRoadCheckpoint",
		"RallyRoadForest",
		"RallyRoadBridge",
		"RallyField",
		"RallyHill",
		"RallyCastle",
		"RallyTunnel",
		"RallyWindmill",
	},
	"Island": {
		"IslandRoad",
		"IslandRoadStart",
		"IslandRoadFinish",
		"IslandRoadCheckpoint",
		"IslandHighway",
		"IslandLoop",
		"IslandBeach",
		"IslandWater",
		"IslandPalm",
		"IslandHotel",
		"IslandAirport",
	},
	"Bay": {
		"BayRoad",
		"BayRoadStart",
		"BayRoadFinish",
		"BayRoadCheckpoint",
		"BayHighway",
		"BayDocks",
		"BaySkyscraper",
		"BayPark",
		"BayTunnel",
		"BayWater",
	},
	"Coast": {
		"CoastRoad",
		"CoastRoadStart",
		"CoastRoadFinish",
		"CoastRoadCheckpoint",
		"CoastCliff",
		"CoastVillage",
		"CoastHarbor",
		"CoastVineyard",
		"CoastWater",
		"CoastTunnel",
	},
}

// knownSize reports whether the declared grid size is one the stock
// editor produces for the environment.
func knownSize(environment string, size gbx.Size) bool {
	for _, s := range sizeCatalog[environment] {
		if s == size {
			return true
		}
	}
	return false
}

// knownBlock reports whether a block identifier belongs to the stock
// content of the environment. An exact catalog hit or any catalog entry
// that prefixes the name counts; the latter covers per-curve and
// per-slope variants the catalog does not enumerate.
func knownBlock(environment, name string) bool {
	for _, b := range blockCatalog[environment] {
		if name == b {
			return true
		}
		if len(name) > len(b) && name[:len(b)] == b {
			return true
		}
	}
	return false
}
