package feed

import (
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"fleet-tracker/internal/fleet"
)

const gtfsRealtimeVersion = "2.0"

// VehiclePositions builds a FULL_DATASET GTFS-RT feed with one vehicle entity per bus.
func VehiclePositions(statuses []fleet.Status, now time.Time) *gtfsrtpb.FeedMessage {
	msg := &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String(gtfsRealtimeVersion),
			Incrementality:      gtfsrtpb.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
		Entity: make([]*gtfsrtpb.FeedEntity, 0, len(statuses)),
	}
	for _, st := range statuses {
		msg.Entity = append(msg.Entity, entity(st, now))
	}
	return msg
}

func entity(st fleet.Status, now time.Time) *gtfsrtpb.FeedEntity {
	status := gtfsrtpb.VehiclePosition_IN_TRANSIT_TO
	if st.Completed {
		status = gtfsrtpb.VehiclePosition_STOPPED_AT
	}
	return &gtfsrtpb.FeedEntity{
		Id: proto.String("bus-" + st.ID),
		Vehicle: &gtfsrtpb.VehiclePosition{
			Vehicle: &gtfsrtpb.VehicleDescriptor{
				Id:    proto.String(st.ID),
				Label: proto.String("Bus " + st.ID),
			},
			Position: &gtfsrtpb.Position{
				Latitude:  proto.Float32(float32(st.Position.Lat)),
				Longitude: proto.Float32(float32(st.Position.Lon)),
				Bearing:   proto.Float32(float32(st.Bearing)),
			},
			CurrentStopSequence: proto.Uint32(uint32(st.Index)),
			StopId:              proto.String(st.CurrentStop),
			CurrentStatus:       status.Enum(),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
	}
}

// Marshal encodes the feed in protobuf wire format.
func Marshal(statuses []fleet.Status, now time.Time) ([]byte, error) {
	return proto.Marshal(VehiclePositions(statuses, now))
}
