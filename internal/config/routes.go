package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"fleet-tracker/internal/gtfs"
	"fleet-tracker/internal/route"
)

// RoutesFile is the YAML layout accepted by ROUTES_SOURCE=file. Each bus gives
// either explicit stops or an encoded polyline plus matching stop names.
type RoutesFile struct {
	Buses []BusEntry `yaml:"buses" validate:"required,min=1,dive"`
}

type BusEntry struct {
	ID        string      `yaml:"id" validate:"required"`
	Color     string      `yaml:"color"`
	Stops     []StopEntry `yaml:"stops" validate:"omitempty,min=2,dive"`
	Polyline  string      `yaml:"polyline" validate:"required_without=Stops,excluded_with=Stops"`
	StopNames []string    `yaml:"stop_names" validate:"required_with=Polyline"`
}

type StopEntry struct {
	Name string  `yaml:"name" validate:"required"`
	Lat  float64 `yaml:"lat" validate:"gte=-90,lte=90"`
	Lon  float64 `yaml:"lon" validate:"gte=-180,lte=180"`
}

// BuiltinAssignments are the two demo buses that run when no source is configured.
func BuiltinAssignments() []gtfs.Assignment {
	return []gtfs.Assignment{
		{
			BusID: "101",
			Color: "red",
			Waypoints: []route.Point{
				{Lat: 12.9716, Lon: 77.5946},
				{Lat: 12.9726, Lon: 77.5956},
				{Lat: 12.9736, Lon: 77.5966},
				{Lat: 12.9746, Lon: 77.5976},
			},
			Stops: []string{"City Center", "Main Street", "Park", "Museum"},
		},
		{
			BusID: "102",
			Color: "green",
			Waypoints: []route.Point{
				{Lat: 12.9716, Lon: 77.5946},
				{Lat: 12.9706, Lon: 77.5936},
				{Lat: 12.9696, Lon: 77.5926},
				{Lat: 12.9686, Lon: 77.5916},
			},
			Stops: []string{"Downtown", "Library", "University", "Market"},
		},
	}
}

func LoadRoutesFile(path string) ([]gtfs.Assignment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRoutes(data)
}

func ParseRoutes(data []byte) ([]gtfs.Assignment, error) {
	var rf RoutesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse routes: %w", err)
	}
	v := validator.New()
	if err := v.Struct(rf); err != nil {
		return nil, fmt.Errorf("validate routes: %w", err)
	}

	out := make([]gtfs.Assignment, 0, len(rf.Buses))
	for _, b := range rf.Buses {
		a := gtfs.Assignment{BusID: b.ID, Color: b.Color}
		if a.Color == "" {
			a.Color = "red"
		}
		if b.Polyline != "" {
			r, err := route.FromPolyline(b.Polyline, b.StopNames)
			if err != nil {
				return nil, fmt.Errorf("bus %s: %w", b.ID, err)
			}
			a.Waypoints = r.Waypoints()
			a.Stops = r.Stops()
		} else {
			for _, s := range b.Stops {
				a.Waypoints = append(a.Waypoints, route.Point{Lat: s.Lat, Lon: s.Lon})
				a.Stops = append(a.Stops, s.Name)
			}
		}
		out = append(out, a)
	}
	return out, nil
}
