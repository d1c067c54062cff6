package services

import (
	"github.com/golang/geo/s2"

	"civicpulse-be/models"
)

// DefaultClusterRadiusMeters is the hotspot radius used when the admin map
// does not ask for a specific one.
const DefaultClusterRadiusMeters = 500.0

const earthRadiusMeters = 6371000.0

// Cluster is a transient hotspot computed for one admin map request. It is
// never persisted; identity does not survive across requests.
type Cluster struct {
	ID     int                `json:"id"`
	Center models.Coordinates `json:"center"`
	Radius float64            `json:"radius"`
	Issues []models.Issue     `json:"issues"`
}

// DistanceMeters returns the great-circle distance between two points.
func DistanceMeters(a, b models.Coordinates) float64 {
	from := s2.LatLngFromDegrees(a.Lat, a.Lng)
	to := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return from.Distance(to).Radians() * earthRadiusMeters
}

// ClusterIssues groups geographically dense issues for hotspot targeting.
//
// Seed/star grouping: each unvisited issue in input order becomes a seed and
// absorbs every remaining unvisited issue within radius of it. Members are
// grouped through the seed, not transitively through each other, so two
// members can be farther than radius apart. Membership therefore depends on
// input order; given a fixed order the result is deterministic. Groups of
// one are dropped. O(n²), fine at single-municipality scale.
//
// Issues without coordinates are excluded up front. A non-positive radius
// falls back to DefaultClusterRadiusMeters.
func ClusterIssues(issues []models.Issue, radiusMeters float64) []Cluster {
	if radiusMeters <= 0 {
		radiusMeters = DefaultClusterRadiusMeters
	}

	located := make([]models.Issue, 0, len(issues))
	for _, issue := range issues {
		if issue.Coordinates != nil {
			located = append(located, issue)
		}
	}

	visited := make([]bool, len(located))
	clusters := []Cluster{}
	for i := range located {
		if visited[i] {
			continue
		}
		visited[i] = true
		seed := *located[i].Coordinates
		group := []models.Issue{located[i]}

		for j := i + 1; j < len(located); j++ {
			if visited[j] {
				continue
			}
			if DistanceMeters(seed, *located[j].Coordinates) <= radiusMeters {
				visited[j] = true
				group = append(group, located[j])
			}
		}

		if len(group) < 2 {
			continue
		}
		clusters = append(clusters, Cluster{
			ID:     len(clusters) + 1,
			Center: centroid(group),
			Radius: radiusMeters,
			Issues: group,
		})
	}
	return clusters
}

// centroid is the arithmetic mean of member coordinates.
func centroid(issues []models.Issue) models.Coordinates {
	var lat, lng float64
	for _, issue := range issues {
		lat += issue.Coordinates.Lat
		lng += issue.Coordinates.Lng
	}
	n := float64(len(issues))
	return models.Coordinates{Lat: lat / n, Lng: lng / n}
}
