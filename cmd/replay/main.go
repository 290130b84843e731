// Replay tool: reads a compressed pose trace and prints a run summary,
// optionally narrowed to a tick range or a single agent.
//
// Usage: go run ./cmd/replay -trace crowd.trace
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/ambleworks/crowd/telemetry"
)

func main() {
	var (
		tracePath = flag.String("trace", "", "path to the pose trace file")
		fromTick  = flag.Int64("from-tick", 0, "start at tick (inclusive, optional)")
		toTick    = flag.Int64("to-tick", 0, "stop at tick (inclusive, optional)")
		serial    = flag.Int("agent", -1, "restrict to one agent serial (-1 = all)")
		dump      = flag.Bool("dump", false, "print one line per frame")
	)
	flag.Parse()

	if *tracePath == "" {
		fmt.Fprintln(os.Stderr, "missing -trace")
		os.Exit(2)
	}

	reader, err := telemetry.OpenTrace(*tracePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open trace:", err)
		os.Exit(1)
	}
	defer reader.Close()

	var (
		frames     int64
		firstTick  = int64(-1)
		lastTick   int64
		firstTime  float64
		lastTime   float64
		samples    int64
		speedSum   float64
		speedMax   float64
		stateCount = map[string]int64{}
		travel     = map[int32]float64{}
		prevX      = map[int32]float64{}
		prevY      = map[int32]float64{}
	)

	var frame telemetry.TraceFrame
	for reader.Next(&frame) {
		if frame.Tick < *fromTick {
			continue
		}
		if *toTick != 0 && frame.Tick > *toTick {
			break
		}

		if firstTick == -1 {
			firstTick = frame.Tick
			firstTime = frame.Time
		}
		lastTick = frame.Tick
		lastTime = frame.Time
		frames++

		for _, p := range frame.Agents {
			if *serial >= 0 && p.Serial != int32(*serial) {
				continue
			}
			samples++
			speed := math.Hypot(p.VX, p.VY)
			speedSum += speed
			if speed > speedMax {
				speedMax = speed
			}
			stateCount[p.State]++

			if px, ok := prevX[p.Serial]; ok {
				travel[p.Serial] += math.Hypot(p.X-px, p.Y-prevY[p.Serial])
			}
			prevX[p.Serial] = p.X
			prevY[p.Serial] = p.Y
		}

		if *dump {
			fmt.Printf("tick=%d time=%.2f agents=%d\n", frame.Tick, frame.Time, len(frame.Agents))
		}
	}
	if err := reader.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "read trace:", err)
		os.Exit(1)
	}

	if frames == 0 {
		fmt.Println("no frames in the selected range")
		return
	}

	fmt.Printf("trace %s: frames=%d ticks=%d..%d time=%.1fs..%.1fs agents=%d\n",
		*tracePath, frames, firstTick, lastTick, firstTime, lastTime, len(travel))

	if samples > 0 {
		fmt.Printf("speed: mean=%.2f m/s max=%.2f m/s (%d samples)\n",
			speedSum/float64(samples), speedMax, samples)
	}

	var totalTravel, maxTravel float64
	for _, d := range travel {
		totalTravel += d
		if d > maxTravel {
			maxTravel = d
		}
	}
	if len(travel) > 0 {
		fmt.Printf("travel: mean=%.1f m max=%.1f m per agent\n",
			totalTravel/float64(len(travel)), maxTravel)
	}

	// State occupancy, busiest first.
	states := make([]string, 0, len(stateCount))
	for s := range stateCount {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool {
		if stateCount[states[i]] != stateCount[states[j]] {
			return stateCount[states[i]] > stateCount[states[j]]
		}
		return states[i] < states[j]
	})
	fmt.Println("state occupancy:")
	for _, s := range states {
		fmt.Printf("  %-22s %6.1f%% (%d)\n",
			s, 100*float64(stateCount[s])/float64(samples), stateCount[s])
	}
}
