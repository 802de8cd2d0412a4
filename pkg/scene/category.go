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

package scene

import (
	"fmt"
	"strings"
)

// Category tags what role a scene plays.
type Category int

const (
	UI Category = iota
	Menu
	VRMenu
	Environment
	Gameplay
	Player
	Camera
	TransitionScene
	PersistentManagers
	Initialization
	Testing
)

var categoryNames = [...]string{
	UI:                 "UI",
	Menu:               "Menu",
	VRMenu:             "VRMenu",
	Environment:        "Environment",
	Gameplay:           "Gameplay",
	Player:             "Player",
	Camera:             "Camera",
	TransitionScene:    "TransitionScene",
	PersistentManagers: "PersistentManagers",
	Initialization:     "Initialization",
	Testing:            "Testing",
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// ParseCategory resolves a category name, ignoring case.
func ParseCategory(s string) (Category, error) {
	for i, name := range categoryNames {
		if strings.EqualFold(name, s) {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown scene category %q", s)
}

// In reports whether c is one of cats.
func (c Category) In(cats ...Category) bool {
	for _, other := range cats {
		if c == other {
			return true
		}
	}
	return false
}
