package mission

import "fmt"

// GenerateMissionID generates a mission ID from the current max number.
// The format is MISSION-XXX where XXX is a zero-padded 3-digit number.
func GenerateMissionID(currentMax int) string {
	return fmt.Sprintf("MISSION-%03d", currentMax+1)
}

// ParseMissionNumber extracts the numeric portion from a mission ID.
// Returns -1 if the ID format is invalid.
func ParseMissionNumber(id string) int {
	var num int
	_, err := fmt.Sscanf(id, "MISSION-%d", &num)
	if err != nil {
		return -1
	}
	return num
}

// GenerateSortieID generates a sortie ID from the current max number.
func GenerateSortieID(currentMax int) string {
	return fmt.Sprintf("SORTIE-%03d", currentMax+1)
}

// ParseSortieNumber extracts the numeric portion from a sortie ID.
// Returns -1 if the ID format is invalid.
func ParseSortieNumber(id string) int {
	var num int
	_, err := fmt.Sscanf(id, "SORTIE-%d", &num)
	if err != nil {
		return -1
	}
	return num
}
