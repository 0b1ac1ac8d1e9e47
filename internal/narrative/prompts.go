package narrative

const sentimentSystemPrompt = `You are an emotional intelligence analyst specialising in workplace communication. You score the emotional tone and sentiment patterns of professional conversations.`

const sentimentUserPrompt = `Analyze the sentiment of this %s conversation between %s.

CONVERSATION CONTENT:
%s

Respond with a JSON object matching this schema:
{
  "overallSentiment": 0-100,
  "sentimentTrend": "improving|declining|stable",
  "emotionalVolatility": 0-100,
  "individualItems": [
    {
      "itemId": "string (the message id)",
      "sentiment": 0-100,
      "emotion": "positive|neutral|worried|frustrated|angry|excited",
      "confidence": 0.0-1.0,
      "emotionalKeywords": ["string"]
    }
  ],
  "emotionalPattern": {
    "dominantEmotion": "string",
    "emotionalRange": 0-100,
    "positiveCount": 0,
    "neutralCount": 0,
    "negativeCount": 0
  }
}

Scoring: 0 = very negative, 50 = neutral, 100 = very positive. Judge against professional norms and pick up subtle concern, frustration or enthusiasm.

Return ONLY the JSON object, no markdown fences or other text.`

const conflictSystemPrompt = `You are a communication analyst and conflict resolution specialist. You detect conflict, tension and relationship health issues in professional conversations.`

const conflictUserPrompt = `Analyze this %s conversation for conflict patterns, escalation and relationship dynamics.

PARTICIPANTS: %s

CONVERSATION:
%s

Respond with a JSON object matching this schema:
{
  "conflictLevel": 0-10,
  "conflictType": "none|professional disagreement|personal tension|hostile conflict",
  "escalationPattern": "stable|escalating|de-escalating",
  "riskFlags": ["string"],
  "conflictIndicators": {
    "defensiveLanguage": true|false,
    "blameAttribution": true|false,
    "personalAttacks": true|false,
    "aggressiveTone": true|false,
    "powerStruggle": true|false,
    "communicationBreakdown": true|false
  },
  "relationshipHealth": 0-100,
  "relationshipDynamics": {
    "powerBalance": "balanced|slightly imbalanced|imbalanced",
    "dominantParty": "participant name or null",
    "reciprocity": 0-100,
    "trustIndicators": 0-100,
    "collaborationLevel": 0-100
  }
}

Conflict level scale: 0 harmonious, 2 minor disagreement, 5 moderate conflict, 8 significant conflict, 10 hostile.
Look for dismissive language, blame, assertion of authority, passive aggression, and collaboration versus competition.

Return ONLY the JSON object, no markdown fences or other text.`

const insightSystemPrompt = `You are an organizational psychologist and communication health specialist. You turn health scores into actionable insights and recommendations.`

const insightUserPrompt = `Based on this communication health analysis, provide insights and recommendations.

OVERALL SCORE: %d/100 (%s)
%s
CONVERSATION TYPE: %s
PARTICIPANTS: %s
%s
Respond with a JSON object matching this schema:
{
  "summary": "2-3 sentence executive summary",
  "insights": {
    "strengths": ["string"],
    "concerns": ["string"],
    "recommendations": [
      {
        "priority": "high|medium|low",
        "category": "%s",
        "action": "specific actionable recommendation",
        "expectedImpact": "+X points improvement expected"
      }
    ]
  }
}

Return ONLY the JSON object, no markdown fences or other text.`

const (
	meetingCategories = "communication_style|conflict_resolution|relationship_building|meeting_dynamics"
	emailCategories   = "communication_style|conflict_resolution|response_time|relationship_building"
	meetingNote       = "\nNOTE: This is a meeting transcript. Focus on real-time communication dynamics, not response times.\n"
)
