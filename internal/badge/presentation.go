package badge

type Icon string

const (
	IconFlame  Icon = "flame"
	IconCamera Icon = "camera"
	IconHeart  Icon = "heart"
	IconStar   Icon = "star"
	IconTrophy Icon = "trophy"
	IconRepeat Icon = "repeat"
	IconMedal  Icon = "medal"
)

type Color string

const (
	ColorOrange Color = "orange"
	ColorBlue   Color = "blue"
	ColorPink   Color = "pink"
	ColorGold   Color = "gold"
	ColorPurple Color = "purple"
	ColorGreen  Color = "green"
)

// Presentation is the rendering metadata for a badge.
type Presentation struct {
	Icon     Icon   `json:"icon"`
	Emoji    string `json:"emoji"`
	Color    Color  `json:"color"`
	Hex      string `json:"hex"`
	Gradient string `json:"gradient"`
}

var iconEmoji = map[Icon]string{
	IconFlame:  "🔥",
	IconCamera: "📸",
	IconHeart:  "❤️",
	IconStar:   "⭐",
	IconTrophy: "🏆",
	IconRepeat: "🔁",
	IconMedal:  "🏅",
}

var colorStyle = map[Color]struct{ hex, gradient string }{
	ColorOrange: {"#F97316", "from-orange-400 to-red-500"},
	ColorBlue:   {"#3B82F6", "from-sky-400 to-blue-600"},
	ColorPink:   {"#EC4899", "from-pink-400 to-rose-500"},
	ColorGold:   {"#EAB308", "from-yellow-300 to-amber-500"},
	ColorPurple: {"#8B5CF6", "from-violet-400 to-purple-600"},
	ColorGreen:  {"#22C55E", "from-emerald-400 to-green-600"},
}

// ParseIcon falls back to IconMedal for unknown keys.
func ParseIcon(s string) Icon {
	if _, ok := iconEmoji[Icon(s)]; ok {
		return Icon(s)
	}
	return IconMedal
}

// ParseColor falls back to ColorPurple for unknown keys.
func ParseColor(s string) Color {
	if _, ok := colorStyle[Color(s)]; ok {
		return Color(s)
	}
	return ColorPurple
}

func PresentationFor(icon Icon, color Color) Presentation {
	icon = ParseIcon(string(icon))
	color = ParseColor(string(color))
	style := colorStyle[color]
	return Presentation{
		Icon:     icon,
		Emoji:    iconEmoji[icon],
		Color:    color,
		Hex:      style.hex,
		Gradient: style.gradient,
	}
}

func (b *Badge) Presentation() Presentation {
	return PresentationFor(b.Icon, b.Color)
}
