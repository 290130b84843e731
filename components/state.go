package components

// StateID identifies one behavioral state. The declaration order is part of
// the wire format (snapshots, feed, traces) and must not be reordered.
type StateID uint8

const (
	StateNone StateID = iota
	StateWaiting
	StateQueueing
	StateWalking
	StateGroupWalking
	StateShopping
	StateTalking
	StateWorking
	StateLiftingForks
	StateLoading
	StateLoweringForks
	StateDriving
	StateTellStory
	StateGroupTalking
	StateListening
	StateTalkingAndWalking
	StateListeningAndWalking
	StateReachedShelf
	StateRunning
	StateBackUp
	StateRequestingService
	StateReceivingService
	StateDrivingToInteraction
	StateProvidingService

	StateCount = iota
)

var stateNames = []string{
	"None",
	"Waiting",
	"Queueing",
	"Walking",
	"GroupWalking",
	"Shopping",
	"Talking",
	"Working",
	"LiftingForks",
	"Loading",
	"LoweringForks",
	"Driving",
	"TellStory",
	"GroupTalking",
	"Listening",
	"TalkingAndWalking",
	"ListeningAndWalking",
	"ReachedShelf",
	"Running",
	"BackUp",
	"RequestingService",
	"ReceivingService",
	"DrivingToInteraction",
	"ProvidingService",
}

func (s StateID) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// StateFamily groups states for display and telemetry.
type StateFamily uint8

const (
	FamilyIdle StateFamily = iota
	FamilyLocomotion
	FamilyWork
	FamilySocial
	FamilyService
)

var familyNames = []string{"idle", "locomotion", "work", "social", "service"}

func (f StateFamily) String() string {
	if int(f) < len(familyNames) {
		return familyNames[f]
	}
	return "unknown"
}

// Family returns the family a state belongs to.
func (s StateID) Family() StateFamily {
	switch s {
	case StateWalking, StateRunning, StateGroupWalking, StateQueueing,
		StateShopping, StateDriving, StateBackUp, StateReachedShelf:
		return FamilyLocomotion
	case StateWorking, StateLiftingForks, StateLoading, StateLoweringForks:
		return FamilyWork
	case StateTalking, StateListening, StateGroupTalking, StateTellStory,
		StateTalkingAndWalking, StateListeningAndWalking:
		return FamilySocial
	case StateRequestingService, StateReceivingService,
		StateDrivingToInteraction, StateProvidingService:
		return FamilyService
	default:
		return FamilyIdle
	}
}

// SeeksAttraction reports whether the state follows a shared attraction and
// therefore honors a lose-attraction override.
func (s StateID) SeeksAttraction() bool {
	return s == StateShopping || s == StateGroupWalking
}

// IsTalkingState reports whether an agent in this state is a speaker that
// nearby agents may start listening to.
func (s StateID) IsTalkingState() bool {
	return s == StateTalking || s == StateTellStory || s == StateGroupTalking
}
