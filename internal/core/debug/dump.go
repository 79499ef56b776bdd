package debug

import (
	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
)

// Direction of a dumped packet.
const (
	ClientToServer = "client->server"
	ServerToClient = "server->client"
)

var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// DumpPacket logs the raw bytes of a packet at debug level.
func DumpPacket(logger logrus.FieldLogger, direction, state, name string, data []byte) {
	logger.WithFields(logrus.Fields{
		"direction": direction,
		"state":     state,
		"packet":    name,
		"size":      len(data),
	}).Debugf("packet dump\n%s", dumper.Sdump(data))
}

// Sdump formats any decoded value for a human.
func Sdump(v interface{}) string {
	return dumper.Sdump(v)
}
