package epoch

// NATO phonetic names cycle by epoch number.
var natoNames = [...]string{
	"Alpha", "Bravo", "Charlie", "Delta", "Echo", "Foxtrot", "Golf",
	"Hotel", "India", "Juliet", "Kilo", "Lima", "Mike", "November",
	"Oscar", "Papa", "Quebec", "Romeo", "Sierra", "Tango", "Uniform",
	"Victor", "Whiskey", "X-ray", "Yankee", "Zulu",
}

// Name returns the phonetic name for an epoch number (1-based).
func Name(number int) string {
	if number < 0 {
		number = -number
	}
	return natoNames[number%len(natoNames)]
}
