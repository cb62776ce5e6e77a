package badge

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestProgress(t *testing.T) {
	tests := []struct {
		metric, req, want int
	}{
		{0, 10, 0},
		{3, 10, 30},
		{1, 3, 33},
		{2, 3, 67},
		{10, 10, 100},
		{25, 10, 100},
		{5, 0, 100},
		{-1, 5, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Progress(tt.metric, tt.req), "metric=%d req=%d", tt.metric, tt.req)
	}
}

func TestMetricsValue(t *testing.T) {
	m := Metrics{PhotoCount: 1, LikesReceived: 2, TopPhotos: 3, LongestStreak: 4, MaxThemeRepeat: 5}

	assert.Equal(t, 1, m.Value(RequirementPhotos))
	assert.Equal(t, 2, m.Value(RequirementLikes))
	assert.Equal(t, 3, m.Value(RequirementTopPhotos))
	assert.Equal(t, 4, m.Value(RequirementStreak))
	assert.Equal(t, 5, m.Value(RequirementThemeRepeat))
	assert.Equal(t, 0, m.Value("unknown"))
}

func TestNewlyEarned(t *testing.T) {
	streak7 := &Badge{ID: uuid.New(), RequirementType: RequirementStreak, RequirementValue: 7}
	photos10 := &Badge{ID: uuid.New(), RequirementType: RequirementPhotos, RequirementValue: 10}
	likes50 := &Badge{ID: uuid.New(), RequirementType: RequirementLikes, RequirementValue: 50}
	catalog := []*Badge{streak7, photos10, likes50}

	m := Metrics{LongestStreak: 8, PhotoCount: 10, LikesReceived: 3}

	got := NewlyEarned(catalog, nil, m)
	assert.Equal(t, []*Badge{streak7, photos10}, got)

	got = NewlyEarned(catalog, map[uuid.UUID]bool{streak7.ID: true}, m)
	assert.Equal(t, []*Badge{photos10}, got)

	// owned badges stay owned even when the metric no longer qualifies
	got = NewlyEarned(catalog, map[uuid.UUID]bool{streak7.ID: true, photos10.ID: true}, Metrics{})
	assert.Empty(t, got)
}

func TestPresentationFallbacks(t *testing.T) {
	p := PresentationFor("unicorn", "chartreuse")
	assert.Equal(t, IconMedal, p.Icon)
	assert.Equal(t, ColorPurple, p.Color)
	assert.NotEmpty(t, p.Emoji)
	assert.NotEmpty(t, p.Hex)

	b := &Badge{Icon: IconFlame, Color: ColorOrange}
	assert.Equal(t, "🔥", b.Presentation().Emoji)
	assert.Equal(t, "#F97316", b.Presentation().Hex)
}

func TestEveryIconAndColorHasPresentation(t *testing.T) {
	for _, icon := range []Icon{IconFlame, IconCamera, IconHeart, IconStar, IconTrophy, IconRepeat, IconMedal} {
		assert.Equal(t, icon, ParseIcon(string(icon)))
	}
	for _, color := range []Color{ColorOrange, ColorBlue, ColorPink, ColorGold, ColorPurple, ColorGreen} {
		assert.Equal(t, color, ParseColor(string(color)))
	}
}
