package sensor

import "strconv"

// newMk4 opens the mk4 sound-level-meter command protocol over the given
// serial path. The mk4 firmware extends mk3's command set with a "V2:"
// prefix but keeps the same semantics per field.
func newMk4(path string) (Driver, error) {
	cmds := commandSet{
		instantLevel:   "V2:READ:LAF",
		energySample:   "V2:READ:LEQ",
		temperature:    "V2:READ:TEMP",
		model:          "V2:READ:MODEL",
		firmware:       "V2:READ:FW",
		manufactureDob: "V2:READ:DOB",
		calibrateDoc:   "V2:READ:DOC",
		readWeighting:  "V2:READ:WEIGHT",
		writeWeighting: func(w string) string { return "V2:WRITE:WEIGHT:" + w },
		writeTau:       func(s float64) string { return "V2:WRITE:TAU:" + fmtFloat(s) },
		writeFs:        func(hz int) string { return "V2:WRITE:FS:" + strconv.Itoa(hz) },
	}
	return openLineDriver(path, cmds)
}
