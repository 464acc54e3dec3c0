package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"brandsite/internal/model"
)

func TestEnrichAddsMetadata(t *testing.T) {
	beacon := model.PageViewBeacon{
		Path:     "/offers?ref=nav",
		URL:      "https://example.com/offers?utm_source=ads&utm_medium=cpc&utm_campaign=launch&utm_term=coaching",
		Referrer: "https://google.com",
	}

	visit := Enrich(beacon, "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/90.0")
	require.Equal(t, "/offers", visit.Path)
	require.Equal(t, "desktop", visit.DeviceType)
	require.NotNil(t, visit.Referrer)
	require.Equal(t, "https://google.com", *visit.Referrer)
	require.Equal(t, "ads", *visit.UTM.Source)
	require.Equal(t, "cpc", *visit.UTM.Medium)
	require.Equal(t, "launch", *visit.UTM.Campaign)
	require.Equal(t, "coaching", *visit.UTM.Term)
	require.Nil(t, visit.UTM.Content)
}

func TestEnrichDirectTraffic(t *testing.T) {
	visit := Enrich(model.PageViewBeacon{Path: "pricing", URL: "::not a url"}, "")
	require.Equal(t, "/pricing", visit.Path)
	require.Nil(t, visit.Referrer)
	require.Nil(t, visit.UTM.Source)
}
