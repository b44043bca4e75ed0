package tts

// MIMEType is the content type of every clip returned by Synthesize.
const MIMEType = "audio/mpeg"
