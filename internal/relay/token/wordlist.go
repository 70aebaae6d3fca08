// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package token

// wordlist is a small sample of valid Wordle answers. {word} templates are
// only entropy-adequate for the authenticated tier (see tier.Authenticated's
// TokenFormat), where rate limits on the keyserver/challenge path make a
// wordlist-sized search space practical.
var wordlist = []string{
	"about", "above", "abuse", "actor", "acute", "admit", "adopt", "adult",
	"after", "again", "agent", "agree", "ahead", "alarm", "album", "alert",
	"alike", "alive", "allow", "alone", "along", "alter", "among", "anger",
	"angle", "angry", "apart", "apple", "apply", "arena", "argue", "arise",
	"array", "aside", "asset", "avoid", "awake", "award", "aware", "badly",
	"baker", "bases", "basic", "beach", "began", "begin", "being", "below",
	"bench", "billy", "birth", "black", "blame", "blind", "block", "blood",
	"board", "boost", "booth", "bound", "brain", "brand", "bread", "break",
	"breed", "brief", "bring", "broad", "broke", "brown", "build", "built",
	"buyer", "cable", "calif", "carry", "catch", "cause", "chain", "chair",
	"chaos", "charm", "chart", "chase", "cheap", "check", "chest", "chief",
	"child", "china", "chose", "civil", "claim", "class", "clean", "clear",
	"click", "climb", "clock", "close", "coach", "coast", "could", "count",
	"court", "cover", "craft", "crash", "cream", "crime", "cross", "crowd",
	"crown", "curve", "cycle", "daily", "dance", "dated", "dealt", "death",
	"debut", "delay", "depth", "doing", "doubt", "dozen", "draft", "drama",
	"drawn", "dream", "dress", "drill", "drink", "drive", "drove", "dying",
	"eager", "early", "earth", "eight", "elite", "empty", "enemy", "enjoy",
	"enter", "entry", "equal", "error", "event", "every", "exact", "exist",
	"extra", "faith", "false", "fault", "fiber", "field", "fifth", "fifty",
}
