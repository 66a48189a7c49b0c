package sensor

import "strconv"

// newMk3 opens the mk3 sound-level-meter command protocol over the given
// serial path.
func newMk3(path string) (Driver, error) {
	cmds := commandSet{
		instantLevel:   "READ:LAF",
		energySample:   "READ:LEQ",
		temperature:    "READ:TEMP",
		model:          "READ:MODEL",
		firmware:       "READ:FW",
		manufactureDob: "READ:DOB",
		calibrateDoc:   "READ:DOC",
		readWeighting:  "READ:WEIGHT",
		writeWeighting: func(w string) string { return "WRITE:WEIGHT:" + w },
		writeTau:       func(s float64) string { return "WRITE:TAU:" + fmtFloat(s) },
		writeFs:        func(hz int) string { return "WRITE:FS:" + strconv.Itoa(hz) },
	}
	return openLineDriver(path, cmds)
}
