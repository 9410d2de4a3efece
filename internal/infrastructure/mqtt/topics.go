package mqtt

import "fmt"

// Topic prefixes for node traffic.
//
// Node topics use the scheme graylogic/node/{node_id}/{kind}. System topics
// are shared by every node on the broker.
const (
	// TopicPrefix is the root of all Gray Logic topics.
	TopicPrefix = "graylogic"

	// TopicPrefixNode is the base for per-node topics.
	TopicPrefixNode = "graylogic/node"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"
)

// Topics builds the MQTT topics for one node.
//
//	topics := mqtt.Topics{NodeID: "irrigation-01"}
//	topics.State()
//	// Returns: "graylogic/node/irrigation-01/state"
type Topics struct {
	NodeID string
}

// State returns the retained device state topic.
//
// Example: graylogic/node/irrigation-01/state
func (t Topics) State() string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixNode, t.NodeID)
}

// Command returns the topic the node listens on for commands.
//
// Example: graylogic/node/irrigation-01/command
func (t Topics) Command() string {
	return fmt.Sprintf("%s/%s/command", TopicPrefixNode, t.NodeID)
}

// Status returns the online/offline topic, also used for the LWT.
//
// Example: graylogic/node/irrigation-01/status
func (t Topics) Status() string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixNode, t.NodeID)
}

// SystemTime returns the topic carrying the broadcast wall-clock time.
func (Topics) SystemTime() string {
	return TopicPrefixSystem + "/time"
}

// AllNodeStates returns a wildcard matching every node's state topic.
func (Topics) AllNodeStates() string {
	return TopicPrefixNode + "/+/state"
}
