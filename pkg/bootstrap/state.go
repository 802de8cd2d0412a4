/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package bootstrap

import "fmt"

// State is the position of a Pipeline in its one-shot run.
type State int32

const (
	Idle State = iota
	LoadingBaseline
	WaitingForTrigger
	Initializing
	Triggering
	Unloading
	Terminated
)

var stateNames = [...]string{
	Idle:              "Idle",
	LoadingBaseline:   "LoadingBaseline",
	WaitingForTrigger: "WaitingForTrigger",
	Initializing:      "Initializing",
	Triggering:        "Triggering",
	Unloading:         "Unloading",
	Terminated:        "Terminated",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int32(s))
	}
	return stateNames[s]
}
