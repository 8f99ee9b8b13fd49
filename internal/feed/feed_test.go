package feed

import (
	"testing"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"fleet-tracker/internal/fleet"
	"fleet-tracker/internal/route"
)

func TestVehiclePositions(t *testing.T) {
	now := time.Unix(1_790_000_000, 0)
	statuses := []fleet.Status{
		{ID: "101", Index: 2, CurrentStop: "Park", Position: route.Point{Lat: 12.9736, Lon: 77.5966}, Bearing: 45},
		{ID: "102", Index: 3, CurrentStop: "Market", Position: route.Point{Lat: 12.9686, Lon: 77.5916}, Completed: true},
	}

	data, err := Marshal(statuses, now)
	require.NoError(t, err)

	var msg gtfsrtpb.FeedMessage
	require.NoError(t, proto.Unmarshal(data, &msg))

	assert.Equal(t, gtfsrtpb.FeedHeader_FULL_DATASET, msg.GetHeader().GetIncrementality())
	assert.Equal(t, uint64(now.Unix()), msg.GetHeader().GetTimestamp())
	require.Len(t, msg.GetEntity(), 2)

	v := msg.GetEntity()[0].GetVehicle()
	assert.Equal(t, "101", v.GetVehicle().GetId())
	assert.Equal(t, "Bus 101", v.GetVehicle().GetLabel())
	assert.InDelta(t, 12.9736, v.GetPosition().GetLatitude(), 1e-4)
	assert.InDelta(t, 77.5966, v.GetPosition().GetLongitude(), 1e-4)
	assert.InDelta(t, 45, v.GetPosition().GetBearing(), 1e-6)
	assert.Equal(t, uint32(2), v.GetCurrentStopSequence())
	assert.Equal(t, "Park", v.GetStopId())
	assert.Equal(t, gtfsrtpb.VehiclePosition_IN_TRANSIT_TO, v.GetCurrentStatus())

	assert.Equal(t, gtfsrtpb.VehiclePosition_STOPPED_AT, msg.GetEntity()[1].GetVehicle().GetCurrentStatus())
}

func TestVehiclePositionsEmpty(t *testing.T) {
	msg := VehiclePositions(nil, time.Now())
	assert.Empty(t, msg.GetEntity())
	assert.Equal(t, "2.0", msg.GetHeader().GetGtfsRealtimeVersion())
}
