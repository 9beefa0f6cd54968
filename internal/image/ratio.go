package image

type Dimensions struct {
	Width  int
	Height int
}

var DefaultDimensions = Dimensions{Width: 1408, Height: 800}

// AspectRatios lists every ratio the node accepts, widest first.
var AspectRatios = []string{"21:9", "16:9", "3:2", "4:3", "1:1", "3:4", "2:3", "9:16", "9:21"}

var dimensions = map[string]Dimensions{
	"1:1":  {1024, 1024},
	"4:3":  {1408, 1024},
	"3:4":  {1024, 1408},
	"16:9": {1408, 800},
	"9:16": {800, 1408},
	"21:9": {1408, 608},
	"9:21": {608, 1408},
	"3:2":  {1344, 896},
	"2:3":  {896, 1344},
}

func DimensionsFor(ratio string) Dimensions {
	if d, ok := dimensions[ratio]; ok {
		return d
	}
	return DefaultDimensions
}
