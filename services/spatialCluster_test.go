package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicpulse-be/models"
)

// One degree of latitude is roughly 111.2 km everywhere, so small latitude
// offsets make handy test distances.
func issueAt(lat, lng float64) models.Issue {
	return models.Issue{
		ID:          primitive.NewObjectID(),
		Status:      models.StatusPending,
		Coordinates: &models.Coordinates{Lat: lat, Lng: lng},
	}
}

func TestDistanceMeters(t *testing.T) {
	a := models.Coordinates{Lat: 40.0, Lng: -74.0}
	b := models.Coordinates{Lat: 40.0009, Lng: -74.0} // ~100 m north
	assert.InDelta(t, 100, DistanceMeters(a, b), 2)
	assert.Zero(t, DistanceMeters(a, a))
}

func TestClusterIssuesPairWithinRadius(t *testing.T) {
	a := issueAt(40.0, -74.0)
	b := issueAt(40.0009, -74.0) // ~100 m apart

	clusters := ClusterIssues([]models.Issue{a, b}, 500)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Issues, 2)
	assert.Equal(t, 500.0, clusters[0].Radius)
	assert.InDelta(t, 40.00045, clusters[0].Center.Lat, 1e-9)
	assert.InDelta(t, -74.0, clusters[0].Center.Lng, 1e-9)
}

func TestClusterIssuesDropsSingletons(t *testing.T) {
	a := issueAt(40.0, -74.0)
	b := issueAt(40.09, -74.0) // ~10 km apart

	clusters := ClusterIssues([]models.Issue{a, b}, 500)
	assert.Empty(t, clusters)
}

func TestClusterIssuesExcludesMissingCoordinates(t *testing.T) {
	a := issueAt(40.0, -74.0)
	b := issueAt(40.0009, -74.0)
	noCoords := models.Issue{ID: primitive.NewObjectID(), Status: models.StatusPending}

	clusters := ClusterIssues([]models.Issue{noCoords, a, b}, 500)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Issues, 2)
}

func TestClusterIssuesStarTopologyNotTransitive(t *testing.T) {
	// B and C are each ~400 m from seed A but ~800 m from each other. The
	// seed still groups all three: membership is through the seed, not
	// pairwise.
	a := issueAt(40.0, -74.0)
	b := issueAt(40.0036, -74.0)
	c := issueAt(39.9964, -74.0)

	clusters := ClusterIssues([]models.Issue{a, b, c}, 500)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Issues, 3)
}

func TestClusterIssuesOrderDependence(t *testing.T) {
	// Same three points, different input order. With B as seed, C is out of
	// reach (~800 m) and ends up a dropped singleton. This order dependence
	// is part of the algorithm's contract, not a bug.
	a := issueAt(40.0, -74.0)
	b := issueAt(40.0036, -74.0)
	c := issueAt(39.9964, -74.0)

	clusters := ClusterIssues([]models.Issue{b, a, c}, 500)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Issues, 2)
}

func TestClusterIssuesMultipleClustersAndIDs(t *testing.T) {
	downtown1 := issueAt(40.0, -74.0)
	downtown2 := issueAt(40.001, -74.0)
	uptown1 := issueAt(40.2, -74.0)
	uptown2 := issueAt(40.2009, -74.0)

	clusters := ClusterIssues([]models.Issue{downtown1, downtown2, uptown1, uptown2}, 500)
	require.Len(t, clusters, 2)
	assert.Equal(t, 1, clusters[0].ID)
	assert.Equal(t, 2, clusters[1].ID)
}

func TestClusterIssuesDefaultRadius(t *testing.T) {
	a := issueAt(40.0, -74.0)
	b := issueAt(40.0009, -74.0)

	clusters := ClusterIssues([]models.Issue{a, b}, 0)
	require.Len(t, clusters, 1)
	assert.Equal(t, DefaultClusterRadiusMeters, clusters[0].Radius)
}
