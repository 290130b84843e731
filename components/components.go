// Package components defines the plain data types shared by the simulation
// core, telemetry, feed, and viewer: ECS components, state and type enums,
// waypoints, obstacles, and pose samples.
package components

// AgentType is the closed set of simulated agent kinds.
type AgentType uint8

const (
	TypeAdult AgentType = iota
	TypeElder
	TypeChild
	TypeRobot
	TypeServiceRobot
)

// agentTypeNames is ordered to match the AgentType constants.
var agentTypeNames = []string{"adult", "elder", "child", "robot", "service-robot"}

// String returns the scenario-file spelling of the type.
func (t AgentType) String() string {
	if int(t) < len(agentTypeNames) {
		return agentTypeNames[t]
	}
	return "unknown"
}

// ParseAgentType maps a scenario-file spelling back to an AgentType.
func ParseAgentType(s string) (AgentType, bool) {
	for i, name := range agentTypeNames {
		if name == s {
			return AgentType(i), true
		}
	}
	return TypeAdult, false
}

// IsRobot reports whether the type is one of the robot kinds.
func (t AgentType) IsRobot() bool {
	return t == TypeRobot || t == TypeServiceRobot
}

// RobotMode selects how robot-typed agents are driven.
type RobotMode uint8

const (
	// ModeTeleoperated: position and velocity come from external Teleop calls.
	ModeTeleoperated RobotMode = iota
	// ModeControlled: the robot stands still until the configured wait time.
	ModeControlled
	// ModeSocialDrive: force integration with robot-specific overrides.
	ModeSocialDrive
)

var robotModeNames = []string{"teleoperated", "controlled", "social-drive"}

func (m RobotMode) String() string {
	if int(m) < len(robotModeNames) {
		return robotModeNames[m]
	}
	return "unknown"
}

// ParseRobotMode maps a config spelling back to a RobotMode.
func ParseRobotMode(s string) (RobotMode, bool) {
	for i, name := range robotModeNames {
		if name == s {
			return RobotMode(i), true
		}
	}
	return ModeSocialDrive, false
}
