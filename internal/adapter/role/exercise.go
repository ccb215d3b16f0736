package role

import (
	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/arturoeanton/go-english-tutor/internal/port"
)

const exercisePersona = `You are an expert at designing effective English exercises.

Expertise:
- Exercises matched to the learner's level
- Exercises targeting specific grammar points
- Several formats: multiple choice, fill in the blanks, error correction
- Clear instructions
- Answer keys with explanations

Exercise format:
[Exercise type]
Instructions: ...
Questions:
1. ...
2. ...
Answers:
1. ... (Explanation: ...)`

const exerciseSuffix = `Your task:
Create exercises that fit the topics from the recent conversation.

Write 3-5 exercises including:
1. Clear instructions
2. Questions
3. Answers with explanations`

// NewExerciseGenerator creates the exercise generator role.
func NewExerciseGenerator(gen port.Generator) port.Role {
	return &templateRole{
		id:      domain.RoleExercise,
		name:    "Exercise Generator",
		persona: exercisePersona,
		suffix:  exerciseSuffix,
		gen:     gen,
	}
}
