// Package feed exports the live train state as a GTFS-realtime
// VehiclePositions feed, so standard transit tooling can consume the
// simulation like any real operator feed.
package feed

import (
	"fmt"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/cioddi/metromesh-sub000/internal/game"
)

const feedVersion = "2.0"

// BuildVehiclePositions assembles a full-dataset FeedMessage from the
// current train views. Dwelling trains report STOPPED_AT their next
// stop, moving trains IN_TRANSIT_TO it.
func BuildVehiclePositions(views []game.TrainView, now time.Time) *gtfs.FeedMessage {
	ts := uint64(now.Unix())
	msg := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String(feedVersion),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(ts),
		},
	}

	for _, v := range views {
		status := gtfs.VehiclePosition_IN_TRANSIT_TO
		if v.Dwelling {
			status = gtfs.VehiclePosition_STOPPED_AT
		}
		vp := &gtfs.VehiclePosition{
			Trip: &gtfs.TripDescriptor{
				RouteId: proto.String(v.RouteID),
			},
			Vehicle: &gtfs.VehicleDescriptor{
				Id: proto.String(v.ID),
			},
			Position: &gtfs.Position{
				Latitude:  proto.Float32(float32(v.Coordinate.Lat)),
				Longitude: proto.Float32(float32(v.Coordinate.Lng)),
				Bearing:   proto.Float32(float32(v.Bearing)),
			},
			CurrentStatus: status.Enum(),
			Timestamp:     proto.Uint64(ts),
		}
		if v.NextStopID != "" {
			vp.StopId = proto.String(v.NextStopID)
		}
		msg.Entity = append(msg.Entity, &gtfs.FeedEntity{
			Id:      proto.String(v.ID),
			Vehicle: vp,
		})
	}
	return msg
}

// Marshal serializes a feed message to the protobuf wire format.
func Marshal(msg *gtfs.FeedMessage) ([]byte, error) {
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feed: %w", err)
	}
	return data, nil
}
