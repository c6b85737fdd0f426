package motd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLegacyColorKeepsBold(t *testing.T) {
	t.Parallel()

	text := ParseLegacy("§aHello §lWorld")
	require.Len(t, text, 2)

	assert.Equal(t, "Hello ", text[0].Text)
	assert.Equal(t, Color("green"), text[0].Color)
	assert.False(t, text[0].Bold)

	assert.Equal(t, "World", text[1].Text)
	assert.Equal(t, Color("green"), text[1].Color)
	assert.True(t, text[1].Bold)

	assert.Equal(t, "Hello World", text.Plain())
}

func TestParseLegacyCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  Text
	}{
		{
			name:  "plain",
			input: "A Minecraft Server",
			want:  Text{{Text: "A Minecraft Server"}},
		},
		{
			name:  "black is a colour",
			input: "§0dark",
			want:  Text{{Text: "dark", Style: Style{Color: "black"}}},
		},
		{
			name:  "upper case code",
			input: "§CRed",
			want:  Text{{Text: "Red", Style: Style{Color: "red"}}},
		},
		{
			name:  "reset clears everything",
			input: "§6§lGold§rplain",
			want: Text{
				{Text: "Gold", Style: Style{Color: "gold", Bold: true}},
				{Text: "plain"},
			},
		},
		{
			name:  "colour after bold keeps bold",
			input: "§l§bA§cB",
			want: Text{
				{Text: "A", Style: Style{Color: "aqua", Bold: true}},
				{Text: "B", Style: Style{Color: "red", Bold: true}},
			},
		},
		{
			name:  "unknown code is consumed",
			input: "a§zb",
			want:  Text{{Text: "ab"}},
		},
		{
			name:  "trailing marker is literal",
			input: "end§",
			want:  Text{{Text: "end§"}},
		},
		{
			name:  "decorations",
			input: "§n§o§m§kx",
			want: Text{{Text: "x", Style: Style{
				Underlined: true, Italic: true, Strikethrough: true, Obfuscated: true,
			}}},
		},
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseLegacy(tt.input))
		})
	}
}

func TestColorHex(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "#55FF55", Color("green").Hex())
	assert.Equal(t, "#FFAA00", Color("gold").Hex())
	assert.Equal(t, "#0000AA", Color("dark_blue").Hex())
	assert.Equal(t, "#A1B2C3", Color("#a1b2c3").Hex())
	assert.Empty(t, Color("").Hex())
	assert.Empty(t, Color("nope").Hex())

	assert.Equal(t, Color("green"), ParseColor("Green"))
	assert.Equal(t, Color("#ABCDEF"), ParseColor("#abcdef"))
	assert.Empty(t, ParseColor("#12345"))
	assert.Empty(t, ParseColor("rainbow"))
}

func TestRawDescriptionString(t *testing.T) {
	t.Parallel()

	var d RawDescription
	require.NoError(t, json.Unmarshal([]byte(`"§eWelcome"`), &d))

	_, ok := d.Description.(PlainDescription)
	require.True(t, ok)

	text := d.Segments()
	require.Len(t, text, 1)
	assert.Equal(t, "Welcome", text[0].Text)
	assert.Equal(t, Color("yellow"), text[0].Color)
}

func TestRawDescriptionComponent(t *testing.T) {
	t.Parallel()

	raw := `{
		"text": "Hello ",
		"color": "gold",
		"bold": true,
		"extra": [
			"plain ",
			{"text": "child", "bold": false, "color": "#112233"},
			{"text": "§cred", "italic": true}
		]
	}`

	var d RawDescription
	require.NoError(t, json.Unmarshal([]byte(raw), &d))

	_, ok := d.Description.(ComponentDescription)
	require.True(t, ok)

	text := d.Segments()
	require.Len(t, text, 3)

	assert.Equal(t, Segment{Text: "Hello plain ", Style: Style{Color: "gold", Bold: true}}, text[0])
	assert.Equal(t, Segment{Text: "child", Style: Style{Color: "#112233"}}, text[1])
	assert.Equal(t, Segment{Text: "red", Style: Style{Color: "red", Bold: true, Italic: true}}, text[2])
	assert.Equal(t, "Hello plain childred", text.Plain())
}

func TestRawDescriptionRejectsOtherShapes(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{`42`, `true`, `[1,2]`} {
		var d RawDescription
		assert.ErrorIs(t, json.Unmarshal([]byte(raw), &d), ErrDescription, raw)
	}

	var d RawDescription
	assert.Error(t, json.Unmarshal([]byte(`{"text": 5}`), &d))
}

func TestRawDescriptionMarshal(t *testing.T) {
	t.Parallel()

	out, err := json.Marshal(RawDescription{Description: PlainDescription("hi")})
	require.NoError(t, err)
	assert.JSONEq(t, `"hi"`, string(out))

	out, err = json.Marshal(RawDescription{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestANSIKeepsText(t *testing.T) {
	t.Parallel()

	text := ParseLegacy("§aLine one\n§lLine two")
	out := text.ANSI()
	assert.Contains(t, out, "Line one")
	assert.Contains(t, out, "Line two")
	assert.Contains(t, out, "\n")
}
